package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/catalog"
	"github.com/trezcool/quizhub/core/report"
	"github.com/trezcool/quizhub/core/user"
)

func (w *web) registerAdminPages(g *echo.Group) {
	g.GET("", w.handle(w.adminDashboard))
	g.POST("/branches", w.handle(w.adminCreateBranch))
	g.POST("/branches/:id/delete", w.handle(w.adminDeleteBranch))
	g.POST("/subjects", w.handle(w.adminCreateSubject))
	g.POST("/teachers", w.handle(w.adminCreateTeacher))
	g.POST("/teachers/assign", w.handle(w.adminAssign))
	g.POST("/teachers/unassign", w.handle(w.adminUnassign))
}

func (w *web) adminDashboard(ctx echo.Context) error {
	branchID := queryInt(ctx, "branch_id")

	stats, err := w.svcs.Reports.AdminStats(ctx.Request().Context(), report.NowFunc(), branchID)
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	branches, err := w.svcs.Catalog.QueryBranches(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying branches")
	}
	subjects, err := w.svcs.Catalog.QuerySubjects(ctx.Request().Context(), catalog.SubjectFilter{BranchID: branchID})
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	teachers, err := w.svcs.Users.QueryTeachers(ctx.Request().Context(), user.QueryFilter{}, nil)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	items := make([]TeacherItem, 0, len(teachers))
	for _, t := range teachers {
		assigned, err := w.svcs.Catalog.AssignedSubjects(ctx.Request().Context(), t.ID)
		if err != nil {
			return errors.Wrap(err, "querying assigned subjects")
		}
		items = append(items, TeacherItem{User: t, Subjects: assigned})
	}

	var selected int
	if branchID != nil {
		selected = *branchID
	}
	return w.render(ctx, "admin_dashboard", echo.Map{
		"Title":          "Admin",
		"Stats":          stats,
		"Branches":       branches,
		"SelectedBranch": selected,
		"Subjects":       subjects,
		"Teachers":       items,
	})
}

func (w *web) adminCreateBranch(ctx echo.Context) error {
	data := catalog.NewBranch{
		Name:        ctx.FormValue("name"),
		ShortName:   ctx.FormValue("short_name"),
		Description: ctx.FormValue("description"),
		Icon:        ctx.FormValue("icon"),
		Color:       ctx.FormValue("color"),
	}
	if err := data.Validate(w.validate); err != nil {
		return err
	}
	b, err := w.svcs.Catalog.CreateBranch(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating branch")
	}
	return redirectMsg(ctx, "/admin", "Branch "+b.Name+" created")
}

func (w *web) adminDeleteBranch(ctx echo.Context) error {
	id, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	if err := w.svcs.Catalog.DeleteBranch(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting branch")
	}
	return redirectMsg(ctx, "/admin", "Branch deleted")
}

func (w *web) adminCreateSubject(ctx echo.Context) error {
	data := catalog.NewSubject{
		Name:        ctx.FormValue("name"),
		Description: ctx.FormValue("description"),
		BranchID:    formInt(ctx, "branch_id"),
	}
	data.IsCore, _ = strconv.ParseBool(ctx.FormValue("is_core"))
	if err := data.Validate(w.validate); err != nil {
		return err
	}
	if err := checkBranch(ctx, w.svcs.Catalog, data.BranchID); err != nil {
		return err
	}
	s, err := w.svcs.Catalog.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return redirectMsg(ctx, "/admin", "Subject "+s.Name+" created")
}

func (w *web) adminCreateTeacher(ctx echo.Context) error {
	data := user.NewTeacher{
		Email:         ctx.FormValue("email"),
		Password:      ctx.FormValue("password"),
		FullName:      ctx.FormValue("full_name"),
		Qualification: ctx.FormValue("qualification"),
		Address:       ctx.FormValue("address"),
		PinCode:       ctx.FormValue("pin_code"),
		SubjectName:   ctx.FormValue("subject_name"),
	}
	if err := data.Validate(w.validate); err != nil {
		return err
	}
	teacher, err := createTeacher(ctx, w.svcs.Users, w.svcs.Catalog, data)
	if err != nil {
		return err
	}
	return redirectMsg(ctx, "/admin", "Teacher "+teacher.DisplayName()+" saved")
}

// teacherAndSubject reads the `teacher_id` and `subject_id` of the assignment forms.
func (w *web) teacherAndSubject(ctx echo.Context) (int, int, error) {
	teacherID, err := formID(ctx, "teacher_id")
	if err != nil {
		return 0, 0, err
	}
	subjectID, err := formID(ctx, "subject_id")
	if err != nil {
		return 0, 0, err
	}
	teacher, err := w.svcs.Users.GetByID(ctx.Request().Context(), teacherID)
	if err != nil {
		return 0, 0, errors.Wrap(err, "getting teacher")
	}
	if !teacher.IsTeacher() {
		return 0, 0, core.NewValidationError(nil, core.FieldError{Field: "teacher_id", Error: "not a teacher"})
	}
	return teacherID, subjectID, nil
}

func (w *web) adminAssign(ctx echo.Context) error {
	teacherID, subjectID, err := w.teacherAndSubject(ctx)
	if err != nil {
		return err
	}
	if err := w.svcs.Catalog.Assign(ctx.Request().Context(), teacherID, subjectID); err != nil {
		return errors.Wrap(err, "assigning subject")
	}
	return redirectMsg(ctx, "/admin", "Subject assigned")
}

func (w *web) adminUnassign(ctx echo.Context) error {
	teacherID, subjectID, err := w.teacherAndSubject(ctx)
	if err != nil {
		return err
	}
	if err := w.svcs.Catalog.Unassign(ctx.Request().Context(), teacherID, subjectID); err != nil {
		return errors.Wrap(err, "unassigning subject")
	}
	return redirectMsg(ctx, "/admin", "Subject unassigned")
}
