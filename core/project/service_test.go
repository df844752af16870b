package project_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/project"
	testutil "github.com/trezcool/studylab/tests"
)

func TestService_Import(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()

	ip := testutil.SampleProject("water-filter", 2, 1, 0)
	ip.Steps[0].Resources = []project.ImportResource{{Title: "Video", URL: "https://example.com/v", Type: "video"}}
	ip.Submission = &project.ImportSubSpec{Type: project.SubmissionFile, AllowedTypes: []string{"pdf"}}
	detail := testutil.CreateProject(t, app.Projects, ip)

	require.Len(t, detail.Steps, 3)
	assert.Equal(t, "water-filter", detail.Slug)
	assert.Len(t, detail.Steps[0].Checklist, 2)
	assert.Len(t, detail.Steps[0].Resources, 1)
	require.NotNil(t, detail.Submission)
	assert.Equal(t, []string{"pdf"}, detail.Submission.AllowedTypes)

	// progress on the step & item about to be dropped
	enr := testutil.CreateEnrollment(t, app.EnrollmentRepo, detail.ID, "kid@test.cd", "")
	require.NoError(t, app.Enrollments.SetStepCompletion(ctx, enr.ID, detail.Steps[0].ID, true))
	require.NoError(t, app.Enrollments.SetStepCompletion(ctx, enr.ID, detail.Steps[2].ID, true))
	require.NoError(t, app.Enrollments.SetChecklistCompletion(ctx, enr.ID, detail.Steps[0].Checklist[1].ID, true))

	// re-import with fewer steps & items: same project, step ids kept by order
	ip = testutil.SampleProject("water-filter", 1, 1)
	ip.Title = "Water Filter v2"
	updated := testutil.CreateProject(t, app.Projects, ip)
	assert.Equal(t, detail.ID, updated.ID)
	assert.Equal(t, "Water Filter v2", updated.Title)
	require.Len(t, updated.Steps, 2)
	assert.Equal(t, detail.Steps[0].ID, updated.Steps[0].ID)
	assert.Len(t, updated.Steps[0].Checklist, 1)
	assert.Empty(t, updated.Steps[0].Resources)
	assert.Nil(t, updated.Submission)

	progress, err := app.EnrollmentRepo.QueryProgress(ctx, enr.ID)
	require.NoError(t, err)
	require.Len(t, progress, 1)
	assert.Equal(t, detail.Steps[0].ID, progress[0].StepID)

	pct, err := app.Enrollments.CompletionPercentage(ctx, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, pct)
}

func TestService_List(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()

	junior := testutil.SampleProject("junior", 0)
	junior.ClassRange = project.ClassRange{Min: 1, Max: 4}
	junior.Title = "Paper Boats"
	senior := testutil.SampleProject("senior", 0)
	senior.ClassRange = project.ClassRange{Min: 9, Max: 12}
	senior.Level = project.LevelAdvanced
	senior.Title = "Rocket Science"
	testutil.CreateProject(t, app.Projects, junior)
	testutil.CreateProject(t, app.Projects, senior)

	slugs := func(res project.ListResult) []string {
		out := make([]string, 0, len(res.Data))
		for _, p := range res.Data {
			out = append(out, p.Slug)
		}
		return out
	}

	tests := []struct {
		name   string
		filter project.QueryFilter
		want   []string
	}{
		{name: "all", want: []string{"senior", "junior"}},
		{name: "class 3", filter: project.QueryFilter{ClassNum: 3}, want: []string{"junior"}},
		{name: "class 12", filter: project.QueryFilter{ClassNum: 12}, want: []string{"senior"}},
		{name: "class 6", filter: project.QueryFilter{ClassNum: 6}, want: []string{}},
		{name: "level", filter: project.QueryFilter{Level: project.LevelAdvanced}, want: []string{"senior"}},
		{name: "search", filter: project.QueryFilter{Search: " rocket "}, want: []string{"senior"}},
		{name: "search (unknown)", filter: project.QueryFilter{Search: "lol"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := app.Projects.List(ctx, tt.filter, core.Page{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, slugs(res))
			assert.Equal(t, len(tt.want), res.Total)
		})
	}
}

func TestService_GetBySlug(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	testutil.CreateProject(t, app.Projects, testutil.SampleProject("kite", 1))

	detail, err := app.Projects.GetBySlug(ctx, " KITE ")
	require.NoError(t, err)
	assert.Len(t, detail.Steps, 1)

	_, err = app.Projects.GetBySlug(ctx, "nope")
	assert.ErrorIs(t, err, project.ErrNotFound)
}

func TestImportProject_Validate(t *testing.T) {
	app := testutil.NewApp(t)

	dupSteps := testutil.SampleProject("dup", 0, 0)
	dupSteps.Steps[1].Order = 1
	dupItems := testutil.SampleProject("dup-items", 2)
	dupItems.Steps[0].Checklist[1].Order = 1
	badRange := testutil.SampleProject("range", 0)
	badRange.ClassRange = project.ClassRange{Min: 8, Max: 3}
	badSlug := testutil.SampleProject("Not A Slug!", 0)
	badLevel := testutil.SampleProject("level", 0)
	badLevel.Level = "EXPERT"
	badSpec := testutil.SampleProject("spec", 0)
	badSpec.Submission = &project.ImportSubSpec{Type: "VIDEO"}

	tests := []struct {
		name    string
		ip      project.ImportProject
		wantErr bool
	}{
		{name: "valid", ip: testutil.SampleProject("valid", 1, 2)},
		{name: "duplicate step order", ip: dupSteps, wantErr: true},
		{name: "duplicate item order", ip: dupItems, wantErr: true},
		{name: "class range", ip: badRange, wantErr: true},
		{name: "slug", ip: badSlug, wantErr: true},
		{name: "level", ip: badLevel, wantErr: true},
		{name: "submission type", ip: badSpec, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ip.Validate(app.Validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSubmissionSpec_AllowsExtension(t *testing.T) {
	unrestricted := project.SubmissionSpec{Type: project.SubmissionFile}
	assert.True(t, unrestricted.AllowsExtension("exe"))

	pdf := project.SubmissionSpec{Type: project.SubmissionFile, AllowedTypes: []string{"PDF", "png"}}
	assert.True(t, pdf.AllowsExtension("pdf"))
	assert.True(t, pdf.AllowsExtension("PNG"))
	assert.False(t, pdf.AllowsExtension("exe"))
	assert.False(t, pdf.AllowsExtension(""))
}
