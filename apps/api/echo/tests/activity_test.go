package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/studylab/apps/api/echo"
	"github.com/trezcool/studylab/core/activity"
	testutil "github.com/trezcool/studylab/tests"
)

func Test_activityApi(t *testing.T) {
	srv, app := setup(t)
	admin := testutil.CreateUser(t, app.UserRepo, "Admin", "+243810000001", "admin@test.cd", "", true, true)
	kid := testutil.CreateUser(t, app.UserRepo, "Kid", "+243810000002", "", "", false, true)
	proj := testutil.CreateProject(t, app.Projects, testutil.SampleProject("robot", 0))
	enr := testutil.CreateEnrollment(t, app.EnrollmentRepo, proj.ID, "kid@test.cd", "")
	adminToken := getToken(t, app, admin)

	logBody := func(enrID, typ string) []byte {
		return marshallObj(t, activity.NewActivity{EnrollmentID: enrID, Type: typ, Metadata: map[string]interface{}{"page": "intro"}})
	}

	runTests(t, srv, []httpTest{
		{name: "log: invalid type", method: http.MethodPost, path: "/v1/activity", body: logBody(enr.ID, "LOL"), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"activityType": "invalid activity type"})},
		{name: "log: unknown enrollment", method: http.MethodPost, path: "/v1/activity", body: logBody("nope", activity.TypePageView),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "enrollment not found"})},
		{name: "log", method: http.MethodPost, path: "/v1/activity", body: logBody(enr.ID, activity.TypePageView),
			wantCode: http.StatusOK, wantData: marshallObj(t, SuccessResponse{Success: true})},
		{name: "log session", method: http.MethodPost, path: "/v1/activity", body: logBody(enr.ID, activity.TypeSessionStart),
			wantCode: http.StatusOK, wantData: marshallObj(t, SuccessResponse{Success: true})},
		{name: "query: admin required", path: "/v1/admin/activities", token: getToken(t, app, kid),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden)},
		{name: "recent: auth required", path: "/v1/admin/activities/recent", wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, errMissingToken)},
	})

	rec := do(srv, http.MethodGet, "/v1/admin/activities?enrollmentId="+enr.ID+"&activityType="+activity.TypePageView, adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var acts []activity.Activity
	unmarshall(t, rec, &acts)
	require.Len(t, acts, 1)
	assert.Equal(t, "intro", acts[0].Metadata["page"])

	rec = do(srv, http.MethodGet, "/v1/admin/activities/recent?limit=1", adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var recent []activity.RecentActivity
	unmarshall(t, rec, &recent)
	require.Len(t, recent, 1)
	assert.Equal(t, "robot", recent[0].ProjectSlug)
	assert.Equal(t, "kid@test.cd", recent[0].Email)
}
