package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/apps/di"
	"github.com/trezcool/quizhub/core/authz"
	"github.com/trezcool/quizhub/core/catalog"
	"github.com/trezcool/quizhub/core/enrollment"
	"github.com/trezcool/quizhub/core/user"
)

type catalogApi struct {
	svc         *catalog.Service
	enrollments *enrollment.Service
	policy      *authz.Policy
	validate    *validator.Validate
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, svcs *di.Services, validate *validator.Validate) {
	api := catalogApi{
		svc:         svcs.Catalog,
		enrollments: svcs.Enrollments,
		policy:      svcs.Policy,
		validate:    validate,
	}
	admin := roleMiddleware(user.RoleAdmin)
	staff := roleMiddleware(user.RoleAdmin, user.RoleTeacher)

	// branches are listed on the registration form
	g.GET("/branches", api.queryBranches)
	g.POST("/branches", api.createBranch, jwt, admin)
	g.PUT("/branches/:id", api.updateBranch, jwt, admin)
	g.DELETE("/branches/:id", api.deleteBranch, jwt, admin)

	sg := g.Group("/subjects", jwt)
	sg.GET("", api.querySubjects)
	sg.POST("", api.createSubject, admin)
	sg.PUT("/:id", api.updateSubject, admin)
	sg.DELETE("/:id", api.deleteSubject, admin)

	cg := g.Group("/chapters", jwt)
	cg.GET("", api.queryChapters)
	cg.POST("", api.createChapter, staff)
	cg.PUT("/:id", api.updateChapter, staff)
	cg.DELETE("/:id", api.deleteChapter, staff)

	qg := g.Group("/quizzes", jwt)
	qg.GET("", api.queryQuizzes)
	qg.POST("", api.createQuiz, staff)
	qg.PUT("/:id", api.updateQuiz, staff)
	qg.DELETE("/:id", api.deleteQuiz, staff)

	qsg := g.Group("/questions", jwt, staff)
	qsg.GET("", api.queryQuestions)
	qsg.POST("", api.createQuestion)
	qsg.PUT("/:id", api.updateQuestion)
	qsg.DELETE("/:id", api.deleteQuestion)

	g.GET("/search", api.search, jwt)
}

// scopedSubjectIDs returns the subjects an actor may browse: nil (all of them) for admins,
// the assigned subjects of teachers and the active enrollments of students.
func scopedSubjectIDs(ctx echo.Context, svc *catalog.Service, enrollments *enrollment.Service, actor authz.Actor) ([]int, error) {
	switch {
	case actor.IsAdmin():
		return nil, nil
	case actor.IsTeacher():
		return svc.AssignedSubjectIDs(ctx.Request().Context(), actor.ID)
	default:
		return enrollments.ActiveSubjectIDs(ctx.Request().Context(), actor.ID)
	}
}

// Branches

func (api *catalogApi) queryBranches(ctx echo.Context) error {
	branches, err := api.svc.QueryBranches(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying branches")
	}
	if branches == nil {
		branches = []catalog.Branch{}
	}
	return ctx.JSON(http.StatusOK, branches)
}

func (api *catalogApi) createBranch(ctx echo.Context) error {
	var data catalog.NewBranch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBranch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	b, err := api.svc.CreateBranch(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating branch")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *catalogApi) updateBranch(ctx echo.Context) error {
	id, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	var data catalog.UpdateBranch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBranch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	b, err := api.svc.UpdateBranch(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating branch")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *catalogApi) deleteBranch(ctx echo.Context) error {
	id, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	if err := api.svc.DeleteBranch(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting branch")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Subjects

func (api *catalogApi) querySubjects(ctx echo.Context) error {
	filter := catalog.SubjectFilter{
		BranchID: queryInt(ctx, "branch_id"),
		Search:   ctx.QueryParam("search"),
	}

	subjects, err := api.svc.QuerySubjects(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []catalog.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *catalogApi) createSubject(ctx echo.Context) error {
	var data catalog.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	s, err := api.svc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *catalogApi) updateSubject(ctx echo.Context) error {
	id, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	var data catalog.UpdateSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSubject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	s, err := api.svc.UpdateSubject(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating subject")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *catalogApi) deleteSubject(ctx echo.Context) error {
	id, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	if err := api.svc.DeleteSubject(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Chapters

func (api *catalogApi) queryChapters(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	scope, err := scopedSubjectIDs(ctx, api.svc, api.enrollments, actor)
	if err != nil {
		return errors.Wrap(err, "scoping subjects")
	}

	filter := catalog.ChapterFilter{SubjectID: queryInt(ctx, "subject_id"), SubjectIDs: scope}
	chapters, err := api.svc.QueryChapters(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying chapters")
	}
	if chapters == nil {
		chapters = []catalog.Chapter{}
	}
	return ctx.JSON(http.StatusOK, chapters)
}

func (api *catalogApi) createChapter(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data catalog.NewChapter
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewChapter")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if _, err := api.svc.GetSubject(ctx.Request().Context(), data.SubjectID); err != nil {
		return errors.Wrap(err, "getting subject")
	}
	if err := api.policy.RequireManageSubject(ctx.Request().Context(), actor, data.SubjectID); err != nil {
		return err
	}

	ch, err := api.svc.CreateChapter(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating chapter")
	}
	return ctx.JSON(http.StatusCreated, ch)
}

// requireManage resolves the subject owning a catalog item and checks the actor manages it.
func (api *catalogApi) requireManage(ctx echo.Context, subjectOf func(ctx echo.Context) (int, error)) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	subjectID, err := subjectOf(ctx)
	if err != nil {
		return err
	}
	return api.policy.RequireManageSubject(ctx.Request().Context(), actor, subjectID)
}

func (api *catalogApi) chapterSubject(ctx echo.Context) (int, error) {
	id, err := paramInt(ctx, "id")
	if err != nil {
		return 0, err
	}
	return api.svc.SubjectOfChapter(ctx.Request().Context(), id)
}

func (api *catalogApi) updateChapter(ctx echo.Context) error {
	if err := api.requireManage(ctx, api.chapterSubject); err != nil {
		return err
	}
	id, _ := paramInt(ctx, "id")

	var data catalog.UpdateChapter
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateChapter")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	ch, err := api.svc.UpdateChapter(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating chapter")
	}
	return ctx.JSON(http.StatusOK, ch)
}

func (api *catalogApi) deleteChapter(ctx echo.Context) error {
	if err := api.requireManage(ctx, api.chapterSubject); err != nil {
		return err
	}
	id, _ := paramInt(ctx, "id")
	if err := api.svc.DeleteChapter(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting chapter")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Quizzes

func (api *catalogApi) queryQuizzes(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	scope, err := scopedSubjectIDs(ctx, api.svc, api.enrollments, actor)
	if err != nil {
		return errors.Wrap(err, "scoping subjects")
	}

	filter := catalog.QuizFilter{
		ChapterID:  queryInt(ctx, "chapter_id"),
		SubjectID:  queryInt(ctx, "subject_id"),
		SubjectIDs: scope,
	}
	quizzes, err := api.svc.QueryQuizzes(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}
	if quizzes == nil {
		quizzes = []catalog.Quiz{}
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *catalogApi) createQuiz(ctx echo.Context) error {
	var data catalog.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	err := api.requireManage(ctx, func(ctx echo.Context) (int, error) {
		return api.svc.SubjectOfChapter(ctx.Request().Context(), data.ChapterID)
	})
	if err != nil {
		return err
	}

	qz, err := api.svc.CreateQuiz(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, qz)
}

func (api *catalogApi) quizSubject(ctx echo.Context) (int, error) {
	id, err := paramInt(ctx, "id")
	if err != nil {
		return 0, err
	}
	return api.svc.SubjectOfQuiz(ctx.Request().Context(), id)
}

func (api *catalogApi) updateQuiz(ctx echo.Context) error {
	if err := api.requireManage(ctx, api.quizSubject); err != nil {
		return err
	}
	id, _ := paramInt(ctx, "id")

	var data catalog.UpdateQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuiz")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	qz, err := api.svc.UpdateQuiz(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating quiz")
	}
	return ctx.JSON(http.StatusOK, qz)
}

func (api *catalogApi) deleteQuiz(ctx echo.Context) error {
	if err := api.requireManage(ctx, api.quizSubject); err != nil {
		return err
	}
	id, _ := paramInt(ctx, "id")
	if err := api.svc.DeleteQuiz(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Questions

func (api *catalogApi) queryQuestions(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	filter := catalog.QuestionFilter{QuizID: queryInt(ctx, "quiz_id")}
	if !actor.IsAdmin() {
		subjectIDs, err := api.svc.AssignedSubjectIDs(ctx.Request().Context(), actor.ID)
		if err != nil {
			return errors.Wrap(err, "querying assigned subjects")
		}
		filter.QuizIDs = []int{}
		if len(subjectIDs) > 0 {
			quizzes, err := api.svc.QueryQuizzes(ctx.Request().Context(), catalog.QuizFilter{SubjectIDs: subjectIDs})
			if err != nil {
				return errors.Wrap(err, "querying quizzes")
			}
			for _, qz := range quizzes {
				filter.QuizIDs = append(filter.QuizIDs, qz.ID)
			}
		}
	}

	questions, err := api.svc.QueryQuestions(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	if questions == nil {
		questions = []catalog.Question{}
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *catalogApi) createQuestion(ctx echo.Context) error {
	var data catalog.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	err := api.requireManage(ctx, func(ctx echo.Context) (int, error) {
		return api.svc.SubjectOfQuiz(ctx.Request().Context(), data.QuizID)
	})
	if err != nil {
		return err
	}

	q, err := api.svc.CreateQuestion(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating question")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *catalogApi) questionSubject(ctx echo.Context) (int, error) {
	id, err := paramInt(ctx, "id")
	if err != nil {
		return 0, err
	}
	return api.svc.SubjectOfQuestion(ctx.Request().Context(), id)
}

func (api *catalogApi) updateQuestion(ctx echo.Context) error {
	if err := api.requireManage(ctx, api.questionSubject); err != nil {
		return err
	}
	id, _ := paramInt(ctx, "id")

	var data catalog.UpdateQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	q, err := api.svc.UpdateQuestion(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *catalogApi) deleteQuestion(ctx echo.Context) error {
	if err := api.requireManage(ctx, api.questionSubject); err != nil {
		return err
	}
	id, _ := paramInt(ctx, "id")
	if err := api.svc.DeleteQuestion(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) search(ctx echo.Context) error {
	res, err := api.svc.Search(ctx.Request().Context(), ctx.QueryParam("q"))
	if err != nil {
		return errors.Wrap(err, "searching catalog")
	}
	return ctx.JSON(http.StatusOK, res)
}
