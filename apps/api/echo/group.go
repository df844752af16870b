package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/enrollment"
	"github.com/trezcool/studylab/core/group"
	"github.com/trezcool/studylab/core/user"
)

type groupApi struct {
	svc         *group.Service
	enrollments *enrollment.Service
	users       *user.Service
	validate    *validator.Validate
}

func registerGroupAPI(g *echo.Group, authed []echo.MiddlewareFunc, api *groupApi) {
	gg := g.Group("/groups", authed...)
	gg.POST("", api.create)
	gg.GET("/:id", api.retrieve)
	gg.POST("/:id/members", api.addMember)
}

type NewGroupRequest struct {
	EnrollmentID string              `json:"enrollmentId"`
	SecondMember *group.SecondMember `json:"secondMember"`
}

func (r *NewGroupRequest) Validate(validate *validator.Validate) error {
	r.EnrollmentID = core.CleanString(r.EnrollmentID)
	if r.SecondMember != nil {
		return r.SecondMember.Validate(validate)
	}
	return nil
}

func (api *groupApi) create(ctx echo.Context) error {
	var data NewGroupRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	c := ctx.Request().Context()
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}

	if data.EnrollmentID != "" {
		enr, err := api.enrollments.Get(c, data.EnrollmentID)
		if err != nil {
			return errors.Wrap(err, "getting enrollment")
		}
		if !(enr.UserID.Valid && enr.UserID.String == usr.ID) {
			return core.ErrAccessDenied
		}
	}

	grp, err := api.svc.Create(c, usr.ID, data.SecondMember)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	if data.EnrollmentID != "" {
		if err = api.enrollments.AttachGroup(c, data.EnrollmentID, grp.ID); err != nil {
			return errors.Wrap(err, "attaching group")
		}
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *groupApi) retrieve(ctx echo.Context) error {
	grp, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) addMember(ctx echo.Context) error {
	var data group.SecondMember
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	c, id := ctx.Request().Context(), ctx.Param("id")
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}

	grp, err := api.svc.Get(c, id)
	if err != nil {
		return errors.Wrap(err, "getting group")
	}
	if grp.TeamLeaderID != usr.ID && !usr.IsAdmin {
		return core.ErrAccessDenied
	}
	if grp, err = api.svc.AddSecondMember(c, id, data); err != nil {
		return errors.Wrap(err, "adding second member")
	}
	return ctx.JSON(http.StatusOK, grp)
}
