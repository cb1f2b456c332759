package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/apps/di"
	"github.com/trezcool/quizhub/core/attempt"
	"github.com/trezcool/quizhub/core/authz"
	"github.com/trezcool/quizhub/core/catalog"
	"github.com/trezcool/quizhub/core/enrollment"
	"github.com/trezcool/quizhub/core/job"
	"github.com/trezcool/quizhub/core/progress"
	"github.com/trezcool/quizhub/core/report"
	"github.com/trezcool/quizhub/core/user"
)

type studentApi struct {
	users       *user.Service
	catalog     *catalog.Service
	attempts    *attempt.Service
	progress    *progress.Service
	enrollments *enrollment.Service
	policy      *authz.Policy
	jobs        *job.Service
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svcs *di.Services) {
	api := studentApi{
		users:       svcs.Users,
		catalog:     svcs.Catalog,
		attempts:    svcs.Attempts,
		progress:    svcs.Progress,
		enrollments: svcs.Enrollments,
		policy:      svcs.Policy,
		jobs:        svcs.Jobs,
	}

	ug := g.Group("/user", jwt, roleMiddleware(user.RoleStudent))
	ug.GET("/quizzes", api.quizzes)
	ug.GET("/quizzes/:id", api.quiz)
	ug.POST("/quizzes/:id/attempt", api.attempt)
	ug.GET("/scores", api.scores)
	ug.GET("/subjects", api.subjects)
	ug.POST("/enrollments/:subject_id", api.enroll)
	ug.DELETE("/enrollments/:subject_id", api.unenroll)
	ug.GET("/progress", api.dashboard)
	ug.GET("/progress/:subject_id", api.subjectProgress)
	ug.POST("/export_csv", api.exportScores)
}

type (
	QuizDetail struct {
		Quiz      catalog.Quiz       `json:"quiz"`
		Questions []catalog.Question `json:"questions"`
	}

	SubjectItem struct {
		catalog.Subject
		IsEnrolled bool `json:"is_enrolled"`
	}
)

func (api *studentApi) quizzes(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	subjectIDs, err := api.enrollments.ActiveSubjectIDs(ctx.Request().Context(), actor.ID)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}

	quizzes, err := api.catalog.QueryQuizzes(ctx.Request().Context(), catalog.QuizFilter{
		SubjectID:  queryInt(ctx, "subject_id"),
		ChapterID:  queryInt(ctx, "chapter_id"),
		SubjectIDs: subjectIDs,
	})
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}
	if quizzes == nil {
		quizzes = []catalog.Quiz{}
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

// loadQuiz returns a quiz of a subject the student is enrolled in.
func (api *studentApi) loadQuiz(ctx echo.Context) (catalog.Quiz, authz.Actor, error) {
	actor, err := getContextActor(ctx)
	if err != nil {
		return catalog.Quiz{}, actor, err
	}
	id, err := paramInt(ctx, "id")
	if err != nil {
		return catalog.Quiz{}, actor, err
	}
	qz, err := api.catalog.GetQuiz(ctx.Request().Context(), id)
	if err != nil {
		return catalog.Quiz{}, actor, errors.Wrap(err, "getting quiz")
	}
	subjectID, err := api.catalog.SubjectOfChapter(ctx.Request().Context(), qz.ChapterID)
	if err != nil {
		return catalog.Quiz{}, actor, errors.Wrap(err, "getting quiz subject")
	}
	if err := api.policy.RequireStudySubject(ctx.Request().Context(), actor, subjectID); err != nil {
		return catalog.Quiz{}, actor, err
	}
	return qz, actor, nil
}

func (api *studentApi) quiz(ctx echo.Context) error {
	qz, _, err := api.loadQuiz(ctx)
	if err != nil {
		return err
	}
	questions, err := api.catalog.QuizQuestions(ctx.Request().Context(), qz.ID)
	if err != nil {
		return errors.Wrap(err, "loading questions")
	}

	detail := QuizDetail{Quiz: qz, Questions: make([]catalog.Question, 0, len(questions))}
	for _, q := range questions {
		detail.Questions = append(detail.Questions, q.WithoutAnswer())
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *studentApi) attempt(ctx echo.Context) error {
	qz, actor, err := api.loadQuiz(ctx)
	if err != nil {
		return err
	}
	var data attempt.Submission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}

	res, err := api.attempts.Submit(ctx.Request().Context(), actor.ID, qz.ID, data.Answers)
	if err != nil {
		return errors.Wrap(err, "submitting attempt")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *studentApi) scores(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	scores, err := api.attempts.ListByUser(ctx.Request().Context(), actor.ID)
	if err != nil {
		return errors.Wrap(err, "listing scores")
	}
	if scores == nil {
		scores = []attempt.Score{}
	}
	return ctx.JSON(http.StatusOK, scores)
}

// subjects lists the subjects of the student's branch (every subject without a branch)
// along with their enrollment state.
func (api *studentApi) subjects(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	items, err := subjectItems(ctx, api.catalog, api.enrollments, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, items)
}

func subjectItems(ctx echo.Context, catalogSvc *catalog.Service, enrollments *enrollment.Service, usr user.User) ([]SubjectItem, error) {
	var filter catalog.SubjectFilter
	if usr.BranchID.Valid {
		filter.BranchID = &usr.BranchID.Int
	}
	subjects, err := catalogSvc.QuerySubjects(ctx.Request().Context(), filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	enrolled, err := enrollments.ActiveSubjectIDs(ctx.Request().Context(), usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	isEnrolled := make(map[int]bool, len(enrolled))
	for _, id := range enrolled {
		isEnrolled[id] = true
	}

	items := make([]SubjectItem, 0, len(subjects))
	for _, s := range subjects {
		items = append(items, SubjectItem{Subject: s, IsEnrolled: isEnrolled[s.ID]})
	}
	return items, nil
}

func (api *studentApi) enroll(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	subjectID, err := paramInt(ctx, "subject_id")
	if err != nil {
		return err
	}
	if _, err := api.catalog.GetSubject(ctx.Request().Context(), subjectID); err != nil {
		return errors.Wrap(err, "getting subject")
	}

	e, err := api.enrollments.Enroll(ctx.Request().Context(), actor.ID, subjectID)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *studentApi) unenroll(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	subjectID, err := paramInt(ctx, "subject_id")
	if err != nil {
		return err
	}
	if err := api.enrollments.Unenroll(ctx.Request().Context(), actor.ID, subjectID); err != nil {
		return errors.Wrap(err, "unenrolling")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) dashboard(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var branchID *int
	if usr.BranchID.Valid {
		branchID = &usr.BranchID.Int
	}

	dashboard, err := api.progress.Dashboard(ctx.Request().Context(), usr.ID, branchID)
	if err != nil {
		return errors.Wrap(err, "computing dashboard")
	}
	return ctx.JSON(http.StatusOK, dashboard)
}

func (api *studentApi) subjectProgress(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	subjectID, err := paramInt(ctx, "subject_id")
	if err != nil {
		return err
	}
	if err := api.policy.RequireStudySubject(ctx.Request().Context(), actor, subjectID); err != nil {
		return err
	}

	sp, err := api.progress.ForSubject(ctx.Request().Context(), actor.ID, subjectID)
	if err != nil {
		return errors.Wrap(err, "computing progress")
	}
	return ctx.JSON(http.StatusOK, sp)
}

func (api *studentApi) exportScores(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	return dispatchExport(ctx, api.jobs, actor, actor.ID, ctx.QueryParam("format"))
}

func dispatchExport(ctx echo.Context, jobs *job.Service, actor authz.Actor, userID int, format string) error {
	if format == "" {
		format = report.FormatCSV
	}
	if format != report.FormatCSV && format != report.FormatXLSX {
		return report.ErrUnknownFormat
	}
	id, err := jobs.Dispatch(ctx.Request().Context(), job.KindExportScores, job.ExportPayload{UserID: userID, Format: format}, &actor.ID)
	if err != nil {
		return errors.Wrap(err, "dispatching export")
	}
	return ctx.JSON(http.StatusAccepted, JobResponse{JobID: id.String(), Status: job.StatusPending})
}
