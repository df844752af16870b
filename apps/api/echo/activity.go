package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/activity"
)

type activityApi struct {
	svc      *activity.Service
	validate *validator.Validate
}

func registerActivityAPI(g *echo.Group, admin []echo.MiddlewareFunc, api *activityApi) {
	g.POST("/activity", api.log)
	g.GET("/admin/activities", api.query, admin...)
	g.GET("/admin/activities/recent", api.recent, admin...)
}

func (api *activityApi) log(ctx echo.Context) error {
	var data activity.NewActivity
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	if _, err := api.svc.Log(ctx.Request().Context(), data.EnrollmentID, data.Type, data.Metadata); err != nil {
		return errors.Wrap(err, "logging activity")
	}
	return success(ctx)
}

func (api *activityApi) query(ctx echo.Context) error {
	var filter activity.QueryFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &filter); err != nil {
		return core.NewValidationError(errors.New("invalid query parameters"))
	}
	acts, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying activities")
	}
	return ctx.JSON(http.StatusOK, acts)
}

func (api *activityApi) recent(ctx echo.Context) error {
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))
	acts, err := api.svc.Recent(ctx.Request().Context(), limit)
	if err != nil {
		return errors.Wrap(err, "getting recent activities")
	}
	return ctx.JSON(http.StatusOK, acts)
}
