package echoapi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/core/catalog"
	"github.com/trezcool/quizhub/core/coursework"
	"github.com/trezcool/quizhub/core/discussion"
)

func (w *web) registerTeacherPages(g *echo.Group) {
	g.GET("", w.handle(w.teacherDashboard))
	g.POST("/chapters", w.handle(w.teacherCreateChapter))
	g.POST("/quizzes", w.handle(w.teacherCreateQuiz))
	g.POST("/questions", w.handle(w.teacherCreateQuestion))
	g.GET("/chapters/:id/materials", w.handle(w.teacherMaterials))
	g.POST("/chapters/:id/materials", w.handle(w.teacherAddMaterial))
	g.POST("/materials/:id/delete", w.handle(w.teacherDeleteMaterial))
	g.GET("/students", w.handle(w.teacherStudents))
	g.GET("/subjects/:id/discussion", w.handle(w.discussionPage("/teacher")))
	g.POST("/subjects/:id/discussion", w.handle(w.postDiscussion("/teacher")))
	g.GET("/assignments", w.handle(w.teacherAssignments))
	g.POST("/assignments", w.handle(w.teacherCreateAssignment))
	g.GET("/assignments/:id/submissions", w.handle(w.teacherSubmissions))
	g.POST("/submissions/:id/grade", w.handle(w.teacherGrade))
}

func (w *web) teacherDashboard(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	subjects, err := w.svcs.Catalog.AssignedSubjects(ctx.Request().Context(), actor.ID)
	if err != nil {
		return errors.Wrap(err, "querying assigned subjects")
	}
	trees := make([]catalog.SubjectTree, 0, len(subjects))
	for _, s := range subjects {
		tree, err := w.svcs.Catalog.QuizTree(ctx.Request().Context(), s.ID)
		if err != nil {
			return errors.Wrap(err, "loading subject tree")
		}
		trees = append(trees, tree)
	}
	notifications, err := w.svcs.Notifications.Unread(ctx.Request().Context(), actor, actor.ID)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}

	return w.render(ctx, "teacher_dashboard", echo.Map{
		"Title":         "Teacher",
		"Subjects":      trees,
		"Notifications": notifications,
	})
}

func (w *web) requireManage(ctx echo.Context, subjectID int) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	return w.svcs.Policy.RequireManageSubject(ctx.Request().Context(), actor, subjectID)
}

func (w *web) teacherCreateChapter(ctx echo.Context) error {
	subjectID, err := formID(ctx, "subject_id")
	if err != nil {
		return err
	}
	data := catalog.NewChapter{
		SubjectID:   subjectID,
		Name:        ctx.FormValue("name"),
		Description: ctx.FormValue("description"),
	}
	if err := data.Validate(w.validate); err != nil {
		return err
	}
	if _, err := w.svcs.Catalog.GetSubject(ctx.Request().Context(), subjectID); err != nil {
		return errors.Wrap(err, "getting subject")
	}
	if err := w.requireManage(ctx, subjectID); err != nil {
		return err
	}
	ch, err := w.svcs.Catalog.CreateChapter(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating chapter")
	}
	return redirectMsg(ctx, "/teacher", "Chapter "+ch.Name+" created")
}

func (w *web) teacherCreateQuiz(ctx echo.Context) error {
	chapterID, err := formID(ctx, "chapter_id")
	if err != nil {
		return err
	}
	data := catalog.NewQuiz{
		ChapterID:    chapterID,
		Name:         ctx.FormValue("name"),
		DateOfQuiz:   ctx.FormValue("date_of_quiz"),
		TimeDuration: ctx.FormValue("time_duration"),
		Remarks:      ctx.FormValue("remarks"),
	}
	if err := data.Validate(w.validate); err != nil {
		return err
	}
	subjectID, err := w.svcs.Catalog.SubjectOfChapter(ctx.Request().Context(), chapterID)
	if err != nil {
		return errors.Wrap(err, "getting chapter subject")
	}
	if err := w.requireManage(ctx, subjectID); err != nil {
		return err
	}
	qz, err := w.svcs.Catalog.CreateQuiz(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return redirectMsg(ctx, "/teacher", "Quiz "+qz.Name+" created")
}

func (w *web) teacherCreateQuestion(ctx echo.Context) error {
	quizID, err := formID(ctx, "quiz_id")
	if err != nil {
		return err
	}
	data := catalog.NewQuestion{
		QuizID:        quizID,
		Statement:     ctx.FormValue("question_statement"),
		Option1:       ctx.FormValue("option1"),
		Option2:       ctx.FormValue("option2"),
		Option3:       ctx.FormValue("option3"),
		Option4:       ctx.FormValue("option4"),
		CorrectOption: ctx.FormValue("correct_option"),
	}
	if err := data.Validate(w.validate); err != nil {
		return err
	}
	subjectID, err := w.svcs.Catalog.SubjectOfQuiz(ctx.Request().Context(), quizID)
	if err != nil {
		return errors.Wrap(err, "getting quiz subject")
	}
	if err := w.requireManage(ctx, subjectID); err != nil {
		return err
	}
	if _, err := w.svcs.Catalog.CreateQuestion(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "creating question")
	}
	return redirectMsg(ctx, "/teacher", "Question added")
}

// materialsPage lists a chapter's materials; staff pages also get the upload form.
func (w *web) materialsPage(ctx echo.Context, page string) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	chapterID, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	chapter, err := w.svcs.Catalog.GetChapter(ctx.Request().Context(), chapterID)
	if err != nil {
		return errors.Wrap(err, "getting chapter")
	}
	materials, err := w.svcs.Materials.List(ctx.Request().Context(), actor, chapterID)
	if err != nil {
		return errors.Wrap(err, "listing materials")
	}
	return w.render(ctx, page, echo.Map{
		"Title":     chapter.Name + " materials",
		"Chapter":   chapter,
		"Materials": materials,
	})
}

func (w *web) teacherMaterials(ctx echo.Context) error {
	return w.materialsPage(ctx, "teacher_materials")
}

func (w *web) teacherAddMaterial(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	chapterID, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	m, err := addMaterial(ctx, w.svcs.Materials, w.validate, actor, chapterID)
	if err != nil {
		return err
	}
	return redirectMsg(ctx, fmt.Sprintf("/teacher/chapters/%d/materials", chapterID), "Material "+m.Title+" added")
}

func (w *web) teacherDeleteMaterial(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	if err := w.svcs.Materials.Delete(ctx.Request().Context(), actor, id); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	to := "/teacher"
	if chapterID := formInt(ctx, "chapter_id"); chapterID != nil {
		to = fmt.Sprintf("/teacher/chapters/%d/materials", *chapterID)
	}
	return redirectMsg(ctx, to, "Material deleted")
}

func (w *web) teacherStudents(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	students, err := w.svcs.Reports.TeacherStudents(ctx.Request().Context(), actor.ID)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return w.render(ctx, "teacher_students", echo.Map{"Title": "My students", "Students": students})
}

// discussionPage serves the discussion of a subject under a role prefix.
func (w *web) discussionPage(prefix string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := getContextActor(ctx)
		if err != nil {
			return err
		}
		subjectID, err := paramInt(ctx, "id")
		if err != nil {
			return err
		}
		subject, err := w.svcs.Catalog.GetSubject(ctx.Request().Context(), subjectID)
		if err != nil {
			return errors.Wrap(err, "getting subject")
		}
		messages, err := w.svcs.Discussions.List(ctx.Request().Context(), actor, subjectID)
		if err != nil {
			return errors.Wrap(err, "listing messages")
		}
		return w.render(ctx, "discussion", echo.Map{
			"Title":    subject.Name + " discussion",
			"Subject":  subject,
			"Messages": messages,
			"Action":   fmt.Sprintf("%s/subjects/%d/discussion", prefix, subjectID),
		})
	}
}

func (w *web) postDiscussion(prefix string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := getContextActor(ctx)
		if err != nil {
			return err
		}
		subjectID, err := paramInt(ctx, "id")
		if err != nil {
			return err
		}
		data := discussion.NewMessage{Message: ctx.FormValue("message")}
		if err := data.Validate(w.validate); err != nil {
			return err
		}
		if _, err := w.svcs.Discussions.Post(ctx.Request().Context(), actor, subjectID, data); err != nil {
			return errors.Wrap(err, "posting message")
		}
		return redirectMsg(ctx, fmt.Sprintf("%s/subjects/%d/discussion", prefix, subjectID), "")
	}
}

func (w *web) teacherAssignments(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	assignments, err := w.svcs.Coursework.ListForTeacher(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	subjects, err := w.svcs.Catalog.AssignedSubjects(ctx.Request().Context(), actor.ID)
	if err != nil {
		return errors.Wrap(err, "querying assigned subjects")
	}
	return w.render(ctx, "teacher_assignments", echo.Map{
		"Title":       "Assignments",
		"Assignments": assignments,
		"Subjects":    subjects,
		"Types":       []string{coursework.TypeHomework, coursework.TypeProject, coursework.TypeQuiz, coursework.TypeEssay},
	})
}

func (w *web) teacherCreateAssignment(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	subjectID, err := formID(ctx, "subject_id")
	if err != nil {
		return err
	}
	data := coursework.NewAssignment{
		Title:          ctx.FormValue("title"),
		Description:    ctx.FormValue("description"),
		SubjectID:      subjectID,
		ChapterID:      formInt(ctx, "chapter_id"),
		Deadline:       ctx.FormValue("deadline"),
		AssignmentType: ctx.FormValue("assignment_type"),
		Instructions:   ctx.FormValue("instructions"),
	}
	if mp := formInt(ctx, "max_points"); mp != nil {
		data.MaxPoints = *mp
	}
	if err := data.Validate(w.validate); err != nil {
		return err
	}
	a, err := w.svcs.Coursework.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return redirectMsg(ctx, "/teacher/assignments", "Assignment "+a.Title+" created")
}

func (w *web) teacherSubmissions(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	subs, err := w.svcs.Coursework.Submissions(ctx.Request().Context(), actor, id)
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	a, err := w.svcs.Coursework.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return w.render(ctx, "teacher_submissions", echo.Map{
		"Title":       a.Title + " submissions",
		"Assignment":  a,
		"Submissions": subs,
	})
}

func (w *web) teacherGrade(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	data := coursework.GradeSubmission{Feedback: ctx.FormValue("feedback")}
	if g, err := strconv.ParseFloat(strings.TrimSpace(ctx.FormValue("grade")), 64); err == nil {
		data.Grade = &g
	}
	if err := data.Validate(w.validate); err != nil {
		return err
	}
	sub, err := w.svcs.Coursework.Grade(ctx.Request().Context(), actor, id, data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return redirectMsg(ctx, fmt.Sprintf("/teacher/assignments/%d/submissions", sub.AssignmentID), "Submission graded")
}
