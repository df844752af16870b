package enrollment

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/project"
)

var (
	errNoSubmissionRequired = core.NewValidationError(errors.New("this project does not require a submission"))
	errFileRequired         = core.NewValidationError(errors.New("a file is required for this submission type"))
	errFileNotExpected      = core.NewValidationError(errors.New("this project expects a link or text submission"))
	errInvalidLink          = core.NewValidationError(nil, core.FieldError{Field: "urlOrText", Error: "must be a valid http(s) URL"})
	errNoFileStore          = errors.New("no file store configured")
)

func (svc *Service) submissionSpec(ctx context.Context, id string) (Enrollment, project.SubmissionSpec, error) {
	enr, err := svc.repo.GetEnrollment(ctx, id)
	if err != nil {
		return Enrollment{}, project.SubmissionSpec{}, err
	}
	spec, err := svc.projects.GetSubmissionSpec(ctx, enr.ProjectID)
	if err != nil {
		return Enrollment{}, project.SubmissionSpec{}, errors.Wrap(err, "getting submission spec")
	}
	if spec == nil {
		return Enrollment{}, project.SubmissionSpec{}, errNoSubmissionRequired
	}
	return enr, *spec, nil
}

// SubmitText records a LINK or TEXT submission.
func (svc *Service) SubmitText(ctx context.Context, id string, ns NewSubmission) (Submission, error) {
	enr, spec, err := svc.submissionSpec(ctx, id)
	if err != nil {
		return Submission{}, err
	}

	switch spec.Type {
	case project.SubmissionFile:
		return Submission{}, errFileRequired
	case project.SubmissionLink:
		u, err := url.ParseRequestURI(ns.URLOrText)
		if err != nil || !(u.Scheme == "http" || u.Scheme == "https") || u.Host == "" {
			return Submission{}, errInvalidLink
		}
	}

	return svc.repo.CreateSubmission(ctx, Submission{
		EnrollmentID: enr.ID,
		URLOrText:    ns.URLOrText,
		CreatedAt:    time.Now().UTC(),
	})
}

// SubmitFile stores the uploaded file and records its URL as a FILE submission.
func (svc *Service) SubmitFile(ctx context.Context, id, filename string, r io.Reader) (Submission, error) {
	enr, spec, err := svc.submissionSpec(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if spec.Type != project.SubmissionFile {
		return Submission{}, errFileNotExpected
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !spec.AllowsExtension(ext) {
		return Submission{}, core.NewValidationError(fmt.Errorf(
			"file type '%s' is not allowed. Allowed types: %s", ext, strings.Join(spec.AllowedTypes, ", ")))
	}
	if svc.files == nil {
		return Submission{}, errNoFileStore
	}

	name := fmt.Sprintf("submissions/%s/%s", enr.ID, uuid.New().String())
	if ext != "" {
		name += "." + ext
	}
	fileURL, err := svc.files.Save(ctx, name, r)
	if err != nil {
		return Submission{}, errors.Wrap(err, "saving submission file")
	}

	sub, err := svc.repo.CreateSubmission(ctx, Submission{
		EnrollmentID: enr.ID,
		URLOrText:    fileURL,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		// the stored file would be unreachable
		if delErr := svc.files.Delete(ctx, name); delErr != nil {
			core.ReportBestEffortFailure(svc.logger, "delete_submission_file", delErr, map[string]interface{}{"file": name})
		}
		return Submission{}, errors.Wrap(err, "creating submission")
	}
	return sub, nil
}

func (svc *Service) ListSubmissions(ctx context.Context, id string) ([]Submission, error) {
	if _, err := svc.repo.GetEnrollment(ctx, id); err != nil {
		return nil, err
	}
	subs, err := svc.repo.QuerySubmissions(ctx, id)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []Submission{}
	}
	return subs, nil
}
