package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/activity"
	"github.com/trezcool/studylab/core/project"
	"github.com/trezcool/studylab/core/user"
	testutil "github.com/trezcool/studylab/tests"
)

func TestProjectRepository_CorruptListColumn(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()

	ip := testutil.SampleProject("kite", 1)
	ip.Submission = &project.ImportSubSpec{Type: project.SubmissionFile, AllowedTypes: []string{"pdf"}}
	proj := testutil.CreateProject(t, app.Projects, ip)

	got, err := app.ProjectRepo.GetProject(ctx, project.GetFilter{ID: proj.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"sample"}, got.Tags)

	_, err = app.DB.ExecContext(ctx, `UPDATE projects SET tags = '["sample"' WHERE id = ?`, proj.ID)
	require.NoError(t, err)

	_, err = app.ProjectRepo.GetProject(ctx, project.GetFilter{ID: proj.ID})
	require.Error(t, err)
	assert.False(t, core.IsNotFound(err))
	assert.Contains(t, err.Error(), "decoding tags")

	_, _, err = app.ProjectRepo.QueryProjects(ctx, project.QueryFilter{}, core.Page{Page: 1, PageSize: 10})
	assert.Error(t, err)

	_, err = app.DB.ExecContext(ctx, `UPDATE submission_specs SET allowed_types = 'pdf' WHERE project_id = ?`, proj.ID)
	require.NoError(t, err)
	_, err = app.ProjectRepo.GetSubmissionSpec(ctx, proj.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding allowed_types")
}

func TestActivityRepository_CorruptMetadata(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	proj := testutil.CreateProject(t, app.Projects, testutil.SampleProject("kite", 0))
	enr := testutil.CreateEnrollment(t, app.EnrollmentRepo, proj.ID, "kid@test.cd", "")

	act, err := app.ActivityRepo.CreateActivity(ctx, activity.Activity{
		EnrollmentID: enr.ID,
		Type:         activity.TypePageView,
		Metadata:     map[string]interface{}{"page": "intro"},
		CreatedAt:    time.Now(),
	})
	require.NoError(t, err)

	acts, err := app.ActivityRepo.QueryEnrollmentActivities(ctx, enr.ID)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, "intro", acts[0].Metadata["page"])

	_, err = app.DB.ExecContext(ctx, `UPDATE user_activities SET metadata = '{"page":' WHERE id = ?`, act.ID)
	require.NoError(t, err)

	_, err = app.ActivityRepo.QueryEnrollmentActivities(ctx, enr.ID)
	assert.Error(t, err)
	_, err = app.ActivityRepo.QueryActivities(ctx, activity.QueryFilter{EnrollmentID: enr.ID, Limit: 10})
	assert.Error(t, err)
	_, err = app.ActivityRepo.QueryRecentActivities(ctx, 10)
	assert.Error(t, err)
}

func TestUserRepository_CreateUser_PhoneTaken(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	existing := testutil.CreateUser(t, app.UserRepo, "Kid", "+243810000001", "kid@test.cd", "", false, true)

	dup := existing
	dup.Email = "other@test.cd"
	_, err := app.UserRepo.CreateUser(ctx, dup)
	assert.ErrorIs(t, err, user.ErrPhoneExists)

	dup.PhoneNumber = "+243810000002"
	created, err := app.UserRepo.CreateUser(ctx, dup)
	require.NoError(t, err)
	assert.NotEqual(t, existing.ID, created.ID)
}
