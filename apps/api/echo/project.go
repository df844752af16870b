package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/project"
)

type projectApi struct {
	svc      *project.Service
	validate *validator.Validate
}

func registerProjectAPI(g *echo.Group, admin []echo.MiddlewareFunc, api *projectApi) {
	g.GET("/projects", api.query)
	g.GET("/projects/:slug", api.retrieve)
	g.POST("/admin/projects/import", api.importProject, admin...)
}

func (api *projectApi) query(ctx echo.Context) error {
	var filter project.QueryFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &filter); err != nil {
		return core.NewValidationError(errors.New("invalid query parameters"))
	}
	res, err := api.svc.List(ctx.Request().Context(), filter, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "listing projects")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *projectApi) retrieve(ctx echo.Context) error {
	detail, err := api.svc.GetBySlug(ctx.Request().Context(), ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "getting project")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *projectApi) importProject(ctx echo.Context) error {
	var data project.ImportProject
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	detail, err := api.svc.Import(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "importing project")
	}
	return ctx.JSON(http.StatusOK, detail)
}
