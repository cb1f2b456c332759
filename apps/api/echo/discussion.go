package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/apps/di"
	"github.com/trezcool/quizhub/core/discussion"
	"github.com/trezcool/quizhub/services/realtime"
)

type discussionApi struct {
	svc      *discussion.Service
	validate *validator.Validate
	hub      *realtime.Hub
}

func registerDiscussionAPI(g *echo.Group, jwt echo.MiddlewareFunc, svcs *di.Services, validate *validator.Validate, hub *realtime.Hub) {
	api := discussionApi{
		svc:      svcs.Discussions,
		validate: validate,
		hub:      hub,
	}

	g.GET("/discussions/:subject_id", api.list, jwt)
	g.POST("/discussions/:subject_id", api.post, jwt)
	g.PUT("/discussions/:id/edit", api.edit, jwt)
	g.DELETE("/discussions/:id/delete", api.delete, jwt)
	if hub != nil {
		g.GET("/discussions/:subject_id/ws", api.subscribe, queryTokenMiddleware, jwt)
	}
}

// queryTokenMiddleware accepts `?token=` for clients that cannot set headers, like browser websockets.
// The token is moved to the Authorization header and dropped from the URI, so request logs never see it.
func queryTokenMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		req := ctx.Request()
		query := req.URL.Query()
		if token := query.Get("token"); token != "" {
			if req.Header.Get(echo.HeaderAuthorization) == "" {
				req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
			}
			query.Del("token")
			req.URL.RawQuery = query.Encode()
			req.RequestURI = req.URL.RequestURI()
		}
		return next(ctx)
	}
}

func (api *discussionApi) list(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	subjectID, err := paramInt(ctx, "subject_id")
	if err != nil {
		return err
	}

	messages, err := api.svc.List(ctx.Request().Context(), actor, subjectID)
	if err != nil {
		return errors.Wrap(err, "listing messages")
	}
	if messages == nil {
		messages = []discussion.Message{}
	}
	return ctx.JSON(http.StatusOK, messages)
}

func (api *discussionApi) post(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	subjectID, err := paramInt(ctx, "subject_id")
	if err != nil {
		return err
	}
	var data discussion.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.Post(ctx.Request().Context(), actor, subjectID, data)
	if err != nil {
		return errors.Wrap(err, "posting message")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *discussionApi) edit(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	var data discussion.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.Edit(ctx.Request().Context(), actor, id, data)
	if err != nil {
		return errors.Wrap(err, "editing message")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *discussionApi) delete(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, id); err != nil {
		return errors.Wrap(err, "deleting message")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *discussionApi) subscribe(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	subjectID, err := paramInt(ctx, "subject_id")
	if err != nil {
		return err
	}
	if err := api.svc.Subscribe(ctx.Request().Context(), actor, subjectID); err != nil {
		return errors.Wrap(err, "subscribing")
	}
	// the upgrader answers failed handshakes itself
	if err := api.hub.ServeWS(ctx.Response(), ctx.Request(), subjectID); err != nil {
		ctx.Logger().Warn(errors.Wrap(err, "upgrading websocket"))
	}
	return nil
}
