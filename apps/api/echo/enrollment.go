package echoapi

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/activity"
	"github.com/trezcool/studylab/core/enrollment"
	"github.com/trezcool/studylab/core/user"
)

type enrollmentApi struct {
	svc        *enrollment.Service
	activities *activity.Service
	users      *user.Service
	validate   *validator.Validate
}

func registerEnrollmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, admin []echo.MiddlewareFunc, api *enrollmentApi) {
	eg := g.Group("/enrollments")
	eg.POST("", api.create)
	eg.GET("/:id", api.retrieve)
	eg.PUT("/:id/steps/:stepId", api.updateStep)
	eg.PUT("/:id/checklist/:itemId", api.updateChecklistItem)
	eg.POST("/:id/submissions", api.submit)
	eg.GET("/:id/submissions", api.querySubmissions)

	eg.DELETE("/:id", api.leave, jwt)
	eg.POST("/:id/complete", api.complete, jwt)

	g.DELETE("/admin/enrollments/:id", api.destroy, admin...)
	g.GET("/admin/enrollments/:id/activity-summary", api.activitySummary, admin...)
}

type CreateEnrollmentResponse struct {
	EnrollmentID string `json:"enrollmentId"`
	ProjectSlug  string `json:"projectSlug"`
}

func (api *enrollmentApi) create(ctx echo.Context) error {
	var data enrollment.NewEnrollment
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	c := ctx.Request().Context()
	enr, err := api.svc.Create(c, data)
	if err != nil {
		return errors.Wrap(err, "creating enrollment")
	}
	api.activities.Track(c, enr.ID, activity.TypeEnrollmentCreated, map[string]interface{}{"projectSlug": data.ProjectSlug})
	return ctx.JSON(http.StatusCreated, CreateEnrollmentResponse{EnrollmentID: enr.ID, ProjectSlug: data.ProjectSlug})
}

func (api *enrollmentApi) retrieve(ctx echo.Context) error {
	detail, err := api.svc.GetDetail(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting enrollment")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *enrollmentApi) updateStep(ctx echo.Context) error {
	var data enrollment.CompletionUpdate
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	c, id, stepID := ctx.Request().Context(), ctx.Param("id"), ctx.Param("stepId")
	if err := api.svc.SetStepCompletion(c, id, stepID, *data.Completed); err != nil {
		return errors.Wrap(err, "updating step completion")
	}
	if *data.Completed {
		api.activities.Track(c, id, activity.TypeStepCompleted, map[string]interface{}{"stepId": stepID})
	}
	return success(ctx)
}

func (api *enrollmentApi) updateChecklistItem(ctx echo.Context) error {
	var data enrollment.CompletionUpdate
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	c, id, itemID := ctx.Request().Context(), ctx.Param("id"), ctx.Param("itemId")
	if err := api.svc.SetChecklistCompletion(c, id, itemID, *data.Completed); err != nil {
		return errors.Wrap(err, "updating checklist completion")
	}
	if *data.Completed {
		api.activities.Track(c, id, activity.TypeChecklistCompleted, map[string]interface{}{"checklistId": itemID})
	}
	return success(ctx)
}

func (api *enrollmentApi) submit(ctx echo.Context) error {
	c, id := ctx.Request().Context(), ctx.Param("id")

	var (
		sub enrollment.Submission
		err error
	)
	if strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, ferr := ctx.FormFile("file")
		if ferr != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
		}
		f, ferr := fh.Open()
		if ferr != nil {
			return errors.Wrap(ferr, "opening uploaded file")
		}
		defer f.Close()
		sub, err = api.svc.SubmitFile(c, id, fh.Filename, f)
	} else {
		var data enrollment.NewSubmission
		if err = bindAndValidate(ctx, api.validate, &data); err != nil {
			return err
		}
		sub, err = api.svc.SubmitText(c, id, data)
	}
	if err != nil {
		return errors.Wrap(err, "creating submission")
	}

	api.activities.Track(c, id, activity.TypeSubmissionCreated, map[string]interface{}{"submissionId": sub.ID})
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *enrollmentApi) querySubmissions(ctx echo.Context) error {
	subs, err := api.svc.ListSubmissions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *enrollmentApi) leave(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	if err = api.svc.Leave(ctx.Request().Context(), ctx.Param("id"), usr.ID); err != nil {
		return errors.Wrap(err, "leaving enrollment")
	}
	return success(ctx)
}

func (api *enrollmentApi) complete(ctx echo.Context) error {
	c, id := ctx.Request().Context(), ctx.Param("id")
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	enr, err := api.svc.Get(c, id)
	if err != nil {
		return errors.Wrap(err, "getting enrollment")
	}
	if !usr.IsAdmin && !(enr.UserID.Valid && enr.UserID.String == usr.ID) {
		return core.ErrAccessDenied
	}
	if err = api.activities.MarkProjectCompleted(c, id); err != nil {
		return errors.Wrap(err, "completing project")
	}
	return success(ctx)
}

func (api *enrollmentApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	return success(ctx)
}

func (api *enrollmentApi) activitySummary(ctx echo.Context) error {
	sum, err := api.activities.Summary(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "summarising activity")
	}
	return ctx.JSON(http.StatusOK, sum)
}
