package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/studylab/core/project"
	testutil "github.com/trezcool/studylab/tests"
)

func Test_projectApi(t *testing.T) {
	srv, app := setup(t)
	admin := testutil.CreateUser(t, app.UserRepo, "Admin", "+243810000001", "admin@test.cd", "", true, true)
	kid := testutil.CreateUser(t, app.UserRepo, "Kid", "+243810000002", "", "", false, true)

	robot := testutil.SampleProject("robot", 1)
	robot.Title = "Line Follower Robot"
	robot.ClassRange = project.ClassRange{Min: 8, Max: 12}
	robot.Level = project.LevelAdvanced
	testutil.CreateProject(t, app.Projects, robot)
	testutil.CreateProject(t, app.Projects, testutil.SampleProject("volcano", 2))

	bad := testutil.SampleProject("Bad Slug", 1)
	runTests(t, srv, []httpTest{
		{name: "import: auth required", method: http.MethodPost, path: "/v1/admin/projects/import", body: marshallObj(t, robot),
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "import: admin required", method: http.MethodPost, path: "/v1/admin/projects/import", body: marshallObj(t, robot),
			token: getToken(t, app, kid), wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden)},
		{name: "import: invalid slug", method: http.MethodPost, path: "/v1/admin/projects/import", body: marshallObj(t, bad),
			token: getToken(t, app, admin), wantCode: http.StatusBadRequest},
		{name: "unknown project", path: "/v1/projects/nope", wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "project not found"})},
	})

	list := func(query string) project.ListResult {
		rec := do(srv, http.MethodGet, "/v1/projects"+query, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res project.ListResult
		unmarshall(t, rec, &res)
		return res
	}
	slugs := func(res project.ListResult) []string {
		var s []string
		for _, p := range res.Data {
			s = append(s, p.Slug)
		}
		return s
	}

	assert.ElementsMatch(t, []string{"robot", "volcano"}, slugs(list("")))
	assert.Equal(t, []string{"robot"}, slugs(list("?class=10")))
	assert.Equal(t, []string{"volcano"}, slugs(list("?level=BEGINNER")))
	assert.Equal(t, []string{"robot"}, slugs(list("?q=follower")))
	assert.Empty(t, slugs(list("?class=2")))

	rec := do(srv, http.MethodGet, "/v1/projects/volcano", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var detail project.Detail
	unmarshall(t, rec, &detail)
	require.Len(t, detail.Steps, 2)
	assert.Equal(t, "Step 1", detail.Steps[0].Title)
	assert.Equal(t, "Item 2.1", detail.Steps[1].Checklist[0].Text)
}
