package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/apps/di"
	"github.com/trezcool/quizhub/core/coursework"
	"github.com/trezcool/quizhub/core/user"
)

type courseworkApi struct {
	svc      *coursework.Service
	validate *validator.Validate
}

func registerCourseworkAPI(g *echo.Group, jwt echo.MiddlewareFunc, svcs *di.Services, validate *validator.Validate) {
	api := courseworkApi{svc: svcs.Coursework, validate: validate}
	staff := roleMiddleware(user.RoleAdmin, user.RoleTeacher)

	g.GET("/assignments", api.list, jwt)
	g.POST("/assignments", api.create, jwt, staff)
	g.POST("/assignments/:id/submit", api.submit, jwt, roleMiddleware(user.RoleStudent))
	g.GET("/assignments/:id/submissions", api.submissions, jwt, staff)
	g.POST("/submissions/:id/grade", api.grade, jwt, staff)
}

// list shows students the assignments of their subjects, staff the ones they authored.
func (api *courseworkApi) list(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	if actor.IsStudent() {
		list, err := api.svc.ListForStudent(ctx.Request().Context(), actor.ID)
		if err != nil {
			return errors.Wrap(err, "listing assignments")
		}
		return ctx.JSON(http.StatusOK, list)
	}

	list, err := api.svc.ListForTeacher(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	if list == nil {
		list = []coursework.Assignment{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *courseworkApi) create(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data coursework.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *courseworkApi) submit(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	var data coursework.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), actor, id, data)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *courseworkApi) submissions(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}

	subs, err := api.svc.Submissions(ctx.Request().Context(), actor, id)
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	if subs == nil {
		subs = []coursework.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *courseworkApi) grade(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	var data coursework.GradeSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.Grade(ctx.Request().Context(), actor, id, data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}
