package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/studylab/core"
)

type (
	SuccessResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message,omitempty"`
	}

	// validatable is implemented by request payloads that clean & validate themselves.
	validatable interface {
		Validate(validate *validator.Validate) error
	}
)

// bindAndValidate binds the request into data, then validates it.
func bindAndValidate(ctx echo.Context, validate *validator.Validate, data validatable) error {
	if err := ctx.Bind(data); err != nil {
		if herr, ok := err.(*echo.HTTPError); ok && herr.Code == http.StatusBadRequest {
			return core.NewValidationError(errors.New("malformed request body"))
		}
		return errors.Wrap(err, "binding request")
	}
	return data.Validate(validate)
}

// bindPage binds the page & pageSize query params.
func bindPage(ctx echo.Context) core.Page {
	var page core.Page
	_ = (&echo.DefaultBinder{}).BindQueryParams(ctx, &page)
	page.Clean()
	return page
}

func success(ctx echo.Context, msg ...string) error {
	res := SuccessResponse{Success: true}
	if len(msg) > 0 {
		res.Message = msg[0]
	}
	return ctx.JSON(http.StatusOK, res)
}
