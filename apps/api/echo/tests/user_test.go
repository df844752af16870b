package tests

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/studylab/apps/api/echo"
	"github.com/trezcool/studylab/core/user"
	testutil "github.com/trezcool/studylab/tests"
)

func Test_userApi_register(t *testing.T) {
	srv, app := setup(t)
	proj := testutil.CreateProject(t, app.Projects, testutil.SampleProject("robot", 1))
	enr := testutil.CreateEnrollment(t, app.EnrollmentRepo, proj.ID, "kid@test.cd", "")
	other := testutil.CreateEnrollment(t, app.EnrollmentRepo, proj.ID, "other@test.cd", "")
	testutil.CreateUser(t, app.UserRepo, "Taken", "+243810000009", "", "", false, true)

	body := func(enrID, phone string) []byte {
		return marshallObj(t, user.NewUser{EnrollmentID: enrID, PhoneNumber: phone, Password: testutil.DefaultPassword})
	}

	tests := []httpTest{
		{name: "malformed body", method: http.MethodPost, path: "/v1/auth/register", body: []byte("{"), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: "malformed request body"})},
		{name: "missing fields", method: http.MethodPost, path: "/v1/auth/register", body: []byte("{}"), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{
				"enrollmentId": "this field is required",
				"phoneNumber":  "this field is required",
				"password":     "this field is required",
			})},
		{name: "unknown enrollment", method: http.MethodPost, path: "/v1/auth/register", body: body("nope", "+243810000001"),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "enrollment not found"})},
		{name: "phone taken", method: http.MethodPost, path: "/v1/auth/register", body: body(other.ID, "+243810000009"),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"phoneNumber": user.ErrPhoneExists.Error()})},
		{name: "registered", method: http.MethodPost, path: "/v1/auth/register", body: body(enr.ID, "+243810000001"), wantCode: http.StatusCreated},
	}
	runTests(t, srv, tests)

	usr, err := app.Users.GetByPhoneNumber(context.Background(), "+243810000001")
	require.NoError(t, err)
	assert.Equal(t, "kid@test.cd", usr.Email)

	linked, err := app.Enrollments.Get(context.Background(), enr.ID)
	require.NoError(t, err)
	assert.Equal(t, usr.ID, linked.UserID.String)
}

func Test_userApi_login(t *testing.T) {
	srv, app := setup(t)
	active := testutil.CreateUser(t, app.UserRepo, "Active", "+243810000001", "", "", false, true)
	inactive := testutil.CreateUser(t, app.UserRepo, "Inactive", "+243810000002", "", "", false, false)

	creds := func(phone, pwd string) []byte {
		return marshallObj(t, user.Credentials{PhoneNumber: phone, Password: pwd})
	}
	errInvalid := marshallObj(t, httpErr{Error: "invalid credentials"})

	tests := []httpTest{
		{name: "missing fields", body: []byte("{}"), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{
				"phoneNumber": "this field is required",
				"password":    "this field is required",
			})},
		{name: "unknown phone", body: creds("+243819999999", testutil.DefaultPassword), wantCode: http.StatusBadRequest, wantData: errInvalid},
		{name: "wrong password", body: creds(active.PhoneNumber, "wrong"), wantCode: http.StatusBadRequest, wantData: errInvalid},
		{name: "inactive", body: creds(inactive.PhoneNumber, testutil.DefaultPassword), wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "account deactivated"})},
		{name: "success", body: creds(" "+active.PhoneNumber+" ", testutil.DefaultPassword), wantCode: http.StatusOK},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/auth/login"
	}
	runTests(t, srv, tests)

	rec := do(srv, http.MethodPost, "/v1/auth/login", "", creds(active.PhoneNumber, testutil.DefaultPassword))
	require.Equal(t, http.StatusOK, rec.Code)
	var res AuthResponse
	unmarshall(t, rec, &res)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, active.ID, res.User.ID)
	assert.True(t, res.User.LastLogin.Valid)

	// the issued token authenticates
	rec = do(srv, http.MethodGet, "/v1/auth/me", res.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_userApi_me(t *testing.T) {
	srv, app := setup(t)
	usr := testutil.CreateUser(t, app.UserRepo, "User", "+243810000001", "kid@test.cd", "", false, true)
	inactive := testutil.CreateUser(t, app.UserRepo, "Inactive", "+243810000002", "", "", false, false)
	proj := testutil.CreateProject(t, app.Projects, testutil.SampleProject("robot", 0, 0))
	enr := testutil.CreateEnrollment(t, app.EnrollmentRepo, proj.ID, usr.Email, usr.ID)
	require.NoError(t, app.Enrollments.SetStepCompletion(context.Background(), enr.ID, proj.Steps[0].ID, true))

	tests := []httpTest{
		{name: "auth required", path: "/v1/auth/me", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "invalid token", path: "/v1/auth/me", token: "lol", wantCode: http.StatusUnauthorized},
		{name: "inactive user", path: "/v1/auth/me", token: getToken(t, app, inactive), wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "account deactivated"})},
		{name: "deleted user", path: "/v1/auth/me", token: getToken(t, app, user.User{ID: "gone"}), wantCode: http.StatusUnauthorized},
	}
	runTests(t, srv, tests)

	rec := do(srv, http.MethodGet, "/v1/auth/me", getToken(t, app, usr))
	require.Equal(t, http.StatusOK, rec.Code)
	var prof user.Profile
	unmarshall(t, rec, &prof)
	assert.Equal(t, usr.ID, prof.User.ID)
	require.Len(t, prof.Enrollments, 1)
	assert.Equal(t, enr.ID, prof.Enrollments[0].ID)
	assert.Equal(t, "robot", prof.Enrollments[0].Project.Slug)
	assert.Equal(t, 50, prof.Enrollments[0].Progress.CompletionPercentage)
}

func Test_userApi_refreshToken(t *testing.T) {
	srv, app := setup(t)
	usr := testutil.CreateUser(t, app.UserRepo, "User", "+243810000001", "", "", false, true)

	rec := do(srv, http.MethodPost, "/v1/auth/token-refresh", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(srv, http.MethodPost, "/v1/auth/token-refresh", getToken(t, app, usr))
	require.Equal(t, http.StatusOK, rec.Code)
	var res TokenResponse
	unmarshall(t, rec, &res)
	assert.NotEmpty(t, res.Token)
}

func Test_userApi_passwordReset(t *testing.T) {
	srv, app := setup(t)
	usr := testutil.CreateUser(t, app.UserRepo, "User", "+243810000001", "kid@test.cd", "", false, true)
	sent := marshallObj(t, SuccessResponse{
		Success: true,
		Message: "If the phone number supplied is associated with an active account that has an email, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})

	tests := []httpTest{
		{name: "missing phone", body: []byte("{}"), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"phoneNumber": "this field is required"})},
		{name: "unknown phone", body: marshallObj(t, PasswordResetRequest{PhoneNumber: "+243819999999"}), wantCode: http.StatusOK, wantData: sent},
		{name: "known phone", body: marshallObj(t, PasswordResetRequest{PhoneNumber: usr.PhoneNumber}), wantCode: http.StatusOK, wantData: sent},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/auth/password-reset"
	}
	runTests(t, srv, tests)

	mails := app.Mail.Sent()
	require.Len(t, mails, 1)
	data := mails[0].TemplateData.(map[string]string)

	confirm := func(token string) []byte {
		return marshallObj(t, user.ResetUserPassword{UID: data["UID"], Token: token, Password: "n3w-Passw0rd", PasswordConfirm: "n3w-Passw0rd"})
	}
	rec := do(srv, http.MethodPost, "/v1/auth/password-reset-confirm", "", confirm("bad-token"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodPost, "/v1/auth/password-reset-confirm", "", confirm(data["Token"]))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(srv, http.MethodPost, "/v1/auth/login", "", marshallObj(t, user.Credentials{PhoneNumber: usr.PhoneNumber, Password: "n3w-Passw0rd"}))
	assert.Equal(t, http.StatusOK, rec.Code)

	// tokens are single use
	rec = do(srv, http.MethodPost, "/v1/auth/password-reset-confirm", "", confirm(data["Token"]))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_userApi_query(t *testing.T) {
	srv, app := setup(t)
	now := time.Now().UTC()
	admin := testutil.CreateUser(t, app.UserRepo, "Admin", "+243810000001", "admin@test.cd", "", true, true, now.Add(-3*time.Hour))
	kid := testutil.CreateUser(t, app.UserRepo, "Kid", "+243810000002", "kid@test.cd", "", false, true, now.Add(-2*time.Hour))
	testutil.CreateUser(t, app.UserRepo, "Gone", "+243810000003", "gone@test.cd", "", false, false, now.Add(-time.Hour))
	adminToken := getToken(t, app, admin)

	tests := []httpTest{
		{name: "auth required", path: "/v1/admin/users", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "admin required", path: "/v1/admin/users", token: getToken(t, app, kid), wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden)},
		{name: "all", path: "/v1/admin/users", token: adminToken, wantCode: http.StatusOK},
	}
	runTests(t, srv, tests)

	list := func(q url.Values) user.ListResult {
		rec := do(srv, http.MethodGet, "/v1/admin/users?"+q.Encode(), adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res user.ListResult
		unmarshall(t, rec, &res)
		return res
	}

	res := list(url.Values{})
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Data, 3)

	res = list(url.Values{"pageSize": {"2"}, "page": {"2"}})
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.TotalPages)
	assert.Len(t, res.Data, 1)
}
