package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/message"
	"github.com/trezcool/studylab/core/user"
)

type messageApi struct {
	svc      *message.Service
	users    *user.Service
	validate *validator.Validate
}

func registerMessageAPI(g *echo.Group, authed, admin []echo.MiddlewareFunc, api *messageApi) {
	mg := g.Group("/me/messages", authed...)
	mg.GET("", api.queryMine)
	mg.GET("/unread-count", api.unreadCount)
	mg.POST("/:id/read", api.markAsRead)

	ag := g.Group("/admin/messages", admin...)
	ag.POST("/announcements", api.createAnnouncement)
	ag.POST("/direct", api.createDirect)
	ag.GET("", api.query)
}

type (
	UnreadCountResponse struct {
		Count int `json:"count"`
	}

	MarkAsReadResponse struct {
		Success     bool `json:"success"`
		AlreadyRead bool `json:"alreadyRead"`
	}
)

func (api *messageApi) queryMine(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	res, err := api.svc.ListForUser(ctx.Request().Context(), usr.ID, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "listing messages")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *messageApi) unreadCount(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	n, err := api.svc.UnreadCount(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "counting unread messages")
	}
	return ctx.JSON(http.StatusOK, UnreadCountResponse{Count: n})
}

func (api *messageApi) markAsRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	alreadyRead, err := api.svc.MarkAsRead(ctx.Request().Context(), ctx.Param("id"), usr.ID)
	if err != nil {
		return errors.Wrap(err, "marking message as read")
	}
	return ctx.JSON(http.StatusOK, MarkAsReadResponse{Success: true, AlreadyRead: alreadyRead})
}

func (api *messageApi) createAnnouncement(ctx echo.Context) error {
	var data message.NewAnnouncement
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	msg, err := api.svc.CreateAnnouncement(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating announcement")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messageApi) createDirect(ctx echo.Context) error {
	var data message.NewDirect
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	msg, err := api.svc.CreateDirect(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating direct message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messageApi) query(ctx echo.Context) error {
	var filter message.QueryFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &filter); err != nil {
		return core.NewValidationError(errors.New("invalid query parameters"))
	}
	filter.Clean()
	if err := api.validate.Struct(filter); err != nil {
		return err
	}
	res, err := api.svc.ListAll(ctx.Request().Context(), filter, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "listing messages")
	}
	return ctx.JSON(http.StatusOK, res)
}
