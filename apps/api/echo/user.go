package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/user"
)

const passwordResetSent = "If the phone number supplied is associated with an active account that has an email, " +
	"an email will arrive in your inbox shortly with instructions to reset your password."

type userApi struct {
	auth     auth
	svc      *user.Service
	validate *validator.Validate
	logger   core.Logger
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *userApi) {
	ag := g.Group("/auth")

	// TODO: rate limit `/login` & `/password-reset` once a shared store is available
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	ag.GET("/me", api.me, jwt, activeUserMiddleware(api.svc))
	ag.POST("/token-refresh", api.refreshToken, jwt)

	g.GET("/admin/users", api.query, jwt, adminMiddleware(api.svc))
}

type (
	AuthResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		PhoneNumber string `json:"phoneNumber" validate:"required"`
	}
)

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.PhoneNumber = core.CleanString(pr.PhoneNumber)
	return validate.Struct(pr)
}

func (api *userApi) respondWithToken(ctx echo.Context, code int, usr user.User) error {
	token, err := api.auth.generateToken(api.auth.claimsFor(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(code, AuthResponse{Token: token, User: usr})
}

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return api.respondWithToken(ctx, http.StatusCreated, usr)
}

func (api *userApi) login(ctx echo.Context) error {
	var data user.Credentials
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	usr, err := api.svc.Authenticate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	return api.respondWithToken(ctx, http.StatusOK, usr)
}

func (api *userApi) me(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	prof, err := api.svc.Profile(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting profile")
	}
	return ctx.JSON(http.StatusOK, prof)
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refresh(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.PhoneNumber); err != nil && !core.IsNotFound(err) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", err)
	}
	return success(ctx, passwordResetSent)
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return success(ctx, "Password has been reset with the new password.")
}

func (api *userApi) query(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &filter); err != nil {
		return core.NewValidationError(errors.New("invalid query parameters"))
	}
	res, err := api.svc.List(ctx.Request().Context(), filter, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "listing users")
	}
	return ctx.JSON(http.StatusOK, res)
}
