package echoapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/apps/di"
	"github.com/trezcool/quizhub/core/job"
	"github.com/trezcool/quizhub/core/notification"
	"github.com/trezcool/quizhub/core/report"
)

type jobApi struct {
	jobs          *job.Service
	reports       *report.Service
	notifications *notification.Service
}

func registerJobAPI(g *echo.Group, jwt echo.MiddlewareFunc, svcs *di.Services) {
	api := jobApi{
		jobs:          svcs.Jobs,
		reports:       svcs.Reports,
		notifications: svcs.Notifications,
	}

	g.GET("/jobs/:id", api.get, jwt)
	g.GET("/jobs/:id/download", api.download, jwt)

	g.GET("/notifications/:user_id", api.unread, jwt)
	g.POST("/notifications/:id/read", api.markRead, jwt)
}

func (api *jobApi) load(ctx echo.Context) (job.Job, error) {
	actor, err := getContextActor(ctx)
	if err != nil {
		return job.Job{}, err
	}
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return job.Job{}, errHttpNotFound
	}
	j, err := api.jobs.Get(ctx.Request().Context(), actor, id)
	if err != nil {
		return job.Job{}, errors.Wrap(err, "getting job")
	}
	return j, nil
}

func (api *jobApi) get(ctx echo.Context) error {
	j, err := api.load(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, j)
}

// download serves the file written by a finished export job.
func (api *jobApi) download(ctx echo.Context) error {
	j, err := api.load(ctx)
	if err != nil {
		return err
	}
	if j.Kind != job.KindExportScores || j.Status != job.StatusDone || j.Result == "" {
		return errHttpNotFound
	}

	f, err := api.reports.OpenExport(j.Result)
	if err != nil {
		return errors.Wrap(err, "opening export")
	}
	defer f.Close()
	return ctx.Attachment(f.Name(), j.Result)
}

func (api *jobApi) unread(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	userID, err := paramInt(ctx, "user_id")
	if err != nil {
		return err
	}

	ns, err := api.notifications.Unread(ctx.Request().Context(), actor, userID)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if ns == nil {
		ns = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, ns)
}

func (api *jobApi) markRead(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	if err := api.notifications.MarkRead(ctx.Request().Context(), actor, id); err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Notification marked as read"})
}
