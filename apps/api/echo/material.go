package echoapi

import (
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/apps/di"
	"github.com/trezcool/quizhub/core/authz"
	"github.com/trezcool/quizhub/core/material"
	"github.com/trezcool/quizhub/core/user"
)

type materialApi struct {
	svc      *material.Service
	validate *validator.Validate
}

func registerMaterialAPI(app *echo.Echo, g *echo.Group, jwt echo.MiddlewareFunc, svcs *di.Services, validate *validator.Validate) {
	api := materialApi{svc: svcs.Materials, validate: validate}
	staff := roleMiddleware(user.RoleAdmin, user.RoleTeacher)

	g.GET("/chapters/:id/materials", api.list, jwt)
	g.POST("/chapters/:id/materials", api.add, jwt, staff)
	g.DELETE("/materials/:id", api.delete, jwt, staff)
	g.GET("/materials/:id/download", api.download, jwt)

	app.GET("/uploads/:name", api.serveUpload)
}

func (api *materialApi) list(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	chapterID, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}

	materials, err := api.svc.List(ctx.Request().Context(), actor, chapterID)
	if err != nil {
		return errors.Wrap(err, "listing materials")
	}
	if materials == nil {
		materials = []material.Material{}
	}
	return ctx.JSON(http.StatusOK, materials)
}

func (api *materialApi) add(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	chapterID, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	m, err := addMaterial(ctx, api.svc, api.validate, actor, chapterID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, m)
}

// addMaterial reads a material from a (multipart) form, along with its optional `file` part.
func addMaterial(ctx echo.Context, svc *material.Service, validate *validator.Validate, actor authz.Actor, chapterID int) (material.Material, error) {
	var data material.NewMaterial
	if err := ctx.Bind(&data); err != nil {
		return material.Material{}, errors.Wrap(err, "binding to NewMaterial")
	}
	if err := data.Validate(validate); err != nil {
		return material.Material{}, err
	}

	var up *material.Upload
	if fh, err := ctx.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return material.Material{}, errors.Wrap(err, "opening upload")
		}
		defer f.Close()
		up = &material.Upload{Filename: fh.Filename, Content: f}
	}

	m, err := svc.Add(ctx.Request().Context(), actor, chapterID, data, up)
	if err != nil {
		return material.Material{}, errors.Wrap(err, "adding material")
	}
	return m, nil
}

func (api *materialApi) delete(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, id); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *materialApi) download(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramInt(ctx, "id")
	if err != nil {
		return err
	}

	m, rc, err := api.svc.Open(ctx.Request().Context(), actor, id)
	if err != nil {
		return errors.Wrap(err, "opening material")
	}
	defer rc.Close()

	name := m.Title + filepath.Ext(m.FilePath.String)
	ctx.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	return ctx.Stream(http.StatusOK, contentType(m.FilePath.String), rc)
}

func (api *materialApi) serveUpload(ctx echo.Context) error {
	name := ctx.Param("name")
	rc, err := api.svc.OpenByName(ctx.Request().Context(), name)
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer rc.Close()
	return ctx.Stream(http.StatusOK, contentType(name), rc)
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return echo.MIMEOctetStream
}
