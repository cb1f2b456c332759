package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/core/catalog"
	"github.com/trezcool/quizhub/core/coursework"
)

// quizFieldPrefix prefixes the name of each question's radio group on the quiz form.
const quizFieldPrefix = "question_"

func (w *web) registerUserPages(g *echo.Group) {
	g.GET("", w.handle(w.userDashboard))
	g.GET("/branch", w.handle(w.branchPage))
	g.POST("/branch", w.handle(w.selectBranch))
	g.GET("/courses", w.handle(w.coursesPage))
	g.POST("/enroll/:id", w.handle(w.enroll))
	g.POST("/unenroll/:id", w.handle(w.unenroll))
	g.GET("/subjects/:id", w.handle(w.subjectPage))
	g.GET("/quizzes/:id", w.handle(w.quizPage))
	g.POST("/quizzes/:id", w.handle(w.submitQuiz))
	g.GET("/subjects/:id/discussion", w.handle(w.discussionPage("/user")))
	g.POST("/subjects/:id/discussion", w.handle(w.postDiscussion("/user")))
	g.GET("/chapters/:id/materials", w.handle(w.userMaterials))
	g.GET("/assignments", w.handle(w.userAssignments))
	g.POST("/assignments/:id/submit", w.handle(w.submitAssignment))
}

func (w *web) userDashboard(ctx echo.Context) error {
	usr, err := getContextUser(ctx, w.svcs.Users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !usr.BranchID.Valid {
		return ctx.Redirect(http.StatusFound, "/user/branch")
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	dashboard, err := w.svcs.Progress.Dashboard(ctx.Request().Context(), usr.ID, &usr.BranchID.Int)
	if err != nil {
		return errors.Wrap(err, "computing dashboard")
	}
	scores, err := w.svcs.Attempts.ListByUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing scores")
	}
	if len(scores) > 10 {
		scores = scores[:10]
	}
	deadlines, err := w.svcs.Coursework.UpcomingDeadlines(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing deadlines")
	}
	notifications, err := w.svcs.Notifications.Unread(ctx.Request().Context(), actor, usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}

	return w.render(ctx, "user_dashboard", echo.Map{
		"Title":         "Dashboard",
		"Progress":      dashboard,
		"Scores":        scores,
		"Deadlines":     deadlines,
		"Notifications": notifications,
	})
}

func (w *web) branchPage(ctx echo.Context) error {
	branches, err := w.svcs.Catalog.QueryBranches(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying branches")
	}
	return w.render(ctx, "user_branch", echo.Map{"Title": "Choose your branch", "Branches": branches})
}

func (w *web) selectBranch(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	branchID, err := formID(ctx, "branch_id")
	if err != nil {
		return err
	}
	if err := checkBranch(ctx, w.svcs.Catalog, &branchID); err != nil {
		return err
	}
	if _, err := w.svcs.Users.SelectBranch(ctx.Request().Context(), actor.ID, branchID); err != nil {
		return errors.Wrap(err, "selecting branch")
	}
	return redirectMsg(ctx, "/user/courses", "Branch selected, now pick your courses")
}

func (w *web) coursesPage(ctx echo.Context) error {
	usr, err := getContextUser(ctx, w.svcs.Users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	items, err := subjectItems(ctx, w.svcs.Catalog, w.svcs.Enrollments, usr)
	if err != nil {
		return err
	}
	return w.render(ctx, "user_courses", echo.Map{"Title": "Courses", "Subjects": items})
}

func (w *web) enroll(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	subjectID, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	s, err := w.svcs.Catalog.GetSubject(ctx.Request().Context(), subjectID)
	if err != nil {
		return errors.Wrap(err, "getting subject")
	}
	if _, err := w.svcs.Enrollments.Enroll(ctx.Request().Context(), actor.ID, subjectID); err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return redirectMsg(ctx, "/user/courses", "Enrolled in "+s.Name)
}

func (w *web) unenroll(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	subjectID, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	if err := w.svcs.Enrollments.Unenroll(ctx.Request().Context(), actor.ID, subjectID); err != nil {
		return errors.Wrap(err, "unenrolling")
	}
	return redirectMsg(ctx, "/user/courses", "Unenrolled")
}

func (w *web) subjectPage(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	subjectID, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	if err := w.svcs.Policy.RequireStudySubject(ctx.Request().Context(), actor, subjectID); err != nil {
		return err
	}
	tree, err := w.svcs.Catalog.QuizTree(ctx.Request().Context(), subjectID)
	if err != nil {
		return errors.Wrap(err, "loading subject tree")
	}
	sp, err := w.svcs.Progress.ForSubject(ctx.Request().Context(), actor.ID, subjectID)
	if err != nil {
		return errors.Wrap(err, "computing progress")
	}

	return w.render(ctx, "user_subject", echo.Map{
		"Title":    tree.Subject.Name,
		"Tree":     tree,
		"Progress": sp,
	})
}

// studyQuiz loads a quiz and its questions for an enrolled student.
func (w *web) studyQuiz(ctx echo.Context) (catalog.Quiz, []catalog.Question, error) {
	actor, err := getContextActor(ctx)
	if err != nil {
		return catalog.Quiz{}, nil, err
	}
	quizID, err := paramInt(ctx, "id")
	if err != nil {
		return catalog.Quiz{}, nil, err
	}
	qz, err := w.svcs.Catalog.GetQuiz(ctx.Request().Context(), quizID)
	if err != nil {
		return catalog.Quiz{}, nil, errors.Wrap(err, "getting quiz")
	}
	subjectID, err := w.svcs.Catalog.SubjectOfChapter(ctx.Request().Context(), qz.ChapterID)
	if err != nil {
		return catalog.Quiz{}, nil, errors.Wrap(err, "getting quiz subject")
	}
	if err := w.svcs.Policy.RequireStudySubject(ctx.Request().Context(), actor, subjectID); err != nil {
		return catalog.Quiz{}, nil, err
	}
	questions, err := w.svcs.Catalog.QuizQuestions(ctx.Request().Context(), quizID)
	if err != nil {
		return catalog.Quiz{}, nil, errors.Wrap(err, "loading questions")
	}
	for i := range questions {
		questions[i] = questions[i].WithoutAnswer()
	}
	return qz, questions, nil
}

func (w *web) quizPage(ctx echo.Context) error {
	qz, questions, err := w.studyQuiz(ctx)
	if err != nil {
		return err
	}
	return w.render(ctx, "user_quiz", echo.Map{
		"Title":       qz.Name,
		"Quiz":        qz,
		"Questions":   questions,
		"FieldPrefix": quizFieldPrefix,
	})
}

func (w *web) submitQuiz(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	qz, questions, err := w.studyQuiz(ctx)
	if err != nil {
		return err
	}

	answers := make(map[int]string, len(questions))
	for _, q := range questions {
		if v := ctx.FormValue(quizFieldPrefix + strconv.Itoa(q.ID)); v != "" {
			answers[q.ID] = v
		}
	}
	res, err := w.svcs.Attempts.Submit(ctx.Request().Context(), actor.ID, qz.ID, answers)
	if err != nil {
		return errors.Wrap(err, "submitting attempt")
	}
	return w.render(ctx, "user_quiz_result", echo.Map{
		"Title":  qz.Name + " results",
		"Quiz":   qz,
		"Result": res,
	})
}

func (w *web) userMaterials(ctx echo.Context) error {
	return w.materialsPage(ctx, "user_materials")
}

func (w *web) userAssignments(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	list, err := w.svcs.Coursework.ListForStudent(ctx.Request().Context(), actor.ID)
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	return w.render(ctx, "user_assignments", echo.Map{
		"Title":       "Assignments",
		"Assignments": list,
		"Now":         coursework.NowFunc(),
	})
}

func (w *web) submitAssignment(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	sub, err := w.svcs.Coursework.Submit(ctx.Request().Context(), actor, id, coursework.NewSubmission{Content: ctx.FormValue("submission_text")})
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	msg := "Assignment submitted"
	if sub.IsLate {
		msg += " (late)"
	}
	return redirectMsg(ctx, "/user/assignments", msg)
}
