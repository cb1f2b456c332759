package echoapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/apps/di"
	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/catalog"
	"github.com/trezcool/quizhub/core/job"
	"github.com/trezcool/quizhub/core/report"
	"github.com/trezcool/quizhub/core/user"
)

var errNotATeacher = core.NewNotFoundError("teacher")

type adminApi struct {
	users    *user.Service
	catalog  *catalog.Service
	jobs     *job.Service
	reports  *report.Service
	validate *validator.Validate
}

func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, svcs *di.Services, validate *validator.Validate) {
	api := adminApi{
		users:    svcs.Users,
		catalog:  svcs.Catalog,
		jobs:     svcs.Jobs,
		reports:  svcs.Reports,
		validate: validate,
	}

	ag := g.Group("/admin", jwt, roleMiddleware(user.RoleAdmin))
	ag.POST("/daily_reminder", api.dailyReminder)
	ag.POST("/monthly_report", api.monthlyReport)
	ag.POST("/export_csv/:user_id", api.exportScores)
	ag.GET("/stats", api.stats)
	ag.GET("/users", api.listUsers)
	ag.DELETE("/users/:id", api.deleteUser)
	ag.GET("/teachers", api.listTeachers)
	ag.POST("/teachers", api.createTeacher)
	ag.DELETE("/teachers/:id", api.deleteTeacher)
	ag.POST("/teachers/:id/subjects/:subject_id", api.assignSubject)
	ag.DELETE("/teachers/:id/subjects/:subject_id", api.unassignSubject)
	ag.POST("/export-users", api.exportUsers)
}

func (api *adminApi) dispatch(ctx echo.Context, kind string) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	id, err := api.jobs.Dispatch(ctx.Request().Context(), kind, nil, &actor.ID)
	if err != nil {
		return errors.Wrapf(err, "dispatching %s", kind)
	}
	return ctx.JSON(http.StatusAccepted, JobResponse{JobID: id.String(), Status: job.StatusPending})
}

func (api *adminApi) dailyReminder(ctx echo.Context) error {
	return api.dispatch(ctx, job.KindDailyReminder)
}

func (api *adminApi) monthlyReport(ctx echo.Context) error {
	return api.dispatch(ctx, job.KindMonthlyReport)
}

func (api *adminApi) exportScores(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	userID, err := paramInt(ctx, "user_id")
	if err != nil {
		return err
	}
	if _, err := api.users.GetByID(ctx.Request().Context(), userID); err != nil {
		return errors.Wrap(err, "getting user")
	}
	return dispatchExport(ctx, api.jobs, actor, userID, ctx.QueryParam("format"))
}

func (api *adminApi) stats(ctx echo.Context) error {
	stats, err := api.reports.AdminStats(ctx.Request().Context(), report.NowFunc(), queryInt(ctx, "branch_id"))
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

// userFilter reads `search`, `role`, `branch_id` and `is_active` from the query string.
func userFilter(ctx echo.Context) user.QueryFilter {
	filter := user.QueryFilter{
		Search:   ctx.QueryParam("search"),
		Role:     ctx.QueryParam("role"),
		BranchID: queryInt(ctx, "branch_id"),
	}
	if active, err := strconv.ParseBool(ctx.QueryParam("is_active")); err == nil {
		filter.IsActive = &active
	}
	filter.Clean()
	return filter
}

func (api *adminApi) listUsers(ctx echo.Context) error {
	var ord Ordering
	ord.Bind(ctx)

	users, err := api.users.Query(ctx.Request().Context(), userFilter(ctx), ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *adminApi) deleteUser(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	if err := api.users.Delete(ctx.Request().Context(), actor.ID, id); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type TeacherItem struct {
	user.User
	Subjects []catalog.Subject `json:"subjects"`
}

func (api *adminApi) listTeachers(ctx echo.Context) error {
	var ord Ordering
	ord.Bind(ctx)

	teachers, err := api.users.QueryTeachers(ctx.Request().Context(), userFilter(ctx), ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	items := make([]TeacherItem, 0, len(teachers))
	for _, t := range teachers {
		subjects, err := api.catalog.AssignedSubjects(ctx.Request().Context(), t.ID)
		if err != nil {
			return errors.Wrap(err, "querying assigned subjects")
		}
		if subjects == nil {
			subjects = []catalog.Subject{}
		}
		items = append(items, TeacherItem{User: t, Subjects: subjects})
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *adminApi) createTeacher(ctx echo.Context) error {
	var data user.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	teacher, err := createTeacher(ctx, api.users, api.catalog, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, teacher)
}

// createTeacher creates the account and, when a subject name is given, assigns the matching subject.
func createTeacher(ctx echo.Context, users *user.Service, catalogSvc *catalog.Service, data user.NewTeacher) (user.User, error) {
	var subjectID int
	if data.SubjectName != "" {
		subjects, err := catalogSvc.QuerySubjects(ctx.Request().Context(), catalog.SubjectFilter{Search: data.SubjectName})
		if err != nil {
			return user.User{}, errors.Wrap(err, "querying subjects")
		}
		for _, s := range subjects {
			if strings.EqualFold(s.Name, data.SubjectName) {
				subjectID = s.ID
				break
			}
		}
		if subjectID == 0 {
			return user.User{}, core.NewValidationError(nil, core.FieldError{Field: "subject_name", Error: "unknown subject"})
		}
	}

	teacher, err := users.CreateTeacher(ctx.Request().Context(), data)
	if err != nil {
		return user.User{}, errors.Wrap(err, "creating teacher")
	}
	if subjectID != 0 {
		if err := catalogSvc.Assign(ctx.Request().Context(), teacher.ID, subjectID); err != nil {
			return user.User{}, errors.Wrap(err, "assigning subject")
		}
	}
	return teacher, nil
}

// loadTeacher returns the teacher named by the `id` param; other accounts are reported missing.
func (api *adminApi) loadTeacher(ctx echo.Context) (user.User, error) {
	id, err := paramInt(ctx, "id")
	if err != nil {
		return user.User{}, err
	}
	usr, err := api.users.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting teacher")
	}
	if !usr.IsTeacher() {
		return user.User{}, errNotATeacher
	}
	return usr, nil
}

func (api *adminApi) deleteTeacher(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	teacher, err := api.loadTeacher(ctx)
	if err != nil {
		return err
	}
	if err := api.users.Delete(ctx.Request().Context(), actor.ID, teacher.ID); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) assignSubject(ctx echo.Context) error {
	teacher, err := api.loadTeacher(ctx)
	if err != nil {
		return err
	}
	subjectID, err := paramInt(ctx, "subject_id")
	if err != nil {
		return err
	}
	if err := api.catalog.Assign(ctx.Request().Context(), teacher.ID, subjectID); err != nil {
		return errors.Wrap(err, "assigning subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) unassignSubject(ctx echo.Context) error {
	teacher, err := api.loadTeacher(ctx)
	if err != nil {
		return err
	}
	subjectID, err := paramInt(ctx, "subject_id")
	if err != nil {
		return err
	}
	if err := api.catalog.Unassign(ctx.Request().Context(), teacher.ID, subjectID); err != nil {
		return errors.Wrap(err, "unassigning subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) exportUsers(ctx echo.Context) error {
	var buf bytes.Buffer
	if err := api.reports.UsersCSV(ctx.Request().Context(), &buf); err != nil {
		return errors.Wrap(err, "writing users csv")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", "users_"+report.NowFunc().Format("20060102_150405")+".csv"))
	return ctx.Blob(http.StatusOK, "text/csv", buf.Bytes())
}
