package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/jdvries/sampletrack/internal/audit"
	"github.com/jdvries/sampletrack/internal/errs"
	"github.com/jdvries/sampletrack/internal/model"
	"github.com/jdvries/sampletrack/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeAuth scripts AuthService outcomes per test.
type fakeAuth struct {
	loginRes   *service.LoginResult
	loginErr   error
	setRes     *service.LoginResult
	setErr     error
	logoutIDs  []model.Identity
	loginCalls int
}

func (f *fakeAuth) Login(_ context.Context, _, _, _, _ string) (*service.LoginResult, error) {
	f.loginCalls++
	return f.loginRes, f.loginErr
}

func (f *fakeAuth) SetBootstrapPassword(_ context.Context, _ model.Identity, _, _, _ string) (*service.LoginResult, error) {
	return f.setRes, f.setErr
}

func (f *fakeAuth) Logout(_ context.Context, ident model.Identity, _, _ string) {
	f.logoutIDs = append(f.logoutIDs, ident)
}

type fakeAccountSvc struct {
	accounts  []model.Account
	listErr   error
	created   *model.Account
	createErr error
	updated   *model.Account
	updateErr error
	deleteErr error
	resetErr  error
	deleted   []uuid.UUID
	resets    []uuid.UUID
}

func (f *fakeAccountSvc) List(context.Context) ([]model.Account, error) {
	return f.accounts, f.listErr
}

func (f *fakeAccountSvc) Create(_ context.Context, _ model.Identity, _ string, _ model.Role, _, _ string) (*model.Account, error) {
	return f.created, f.createErr
}

func (f *fakeAccountSvc) Update(_ context.Context, _ model.Identity, _ uuid.UUID, _ service.AccountUpdate, _, _ string) (*model.Account, error) {
	return f.updated, f.updateErr
}

func (f *fakeAccountSvc) Delete(_ context.Context, _ model.Identity, id uuid.UUID, _, _ string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAccountSvc) ForceResetPassword(_ context.Context, _ model.Identity, id uuid.UUID, _, _ string) error {
	if f.resetErr != nil {
		return f.resetErr
	}
	f.resets = append(f.resets, id)
	return nil
}

// fakeParser maps literal token strings to identities.
type fakeParser struct {
	sessions map[string]model.Identity
}

func (f *fakeParser) Parse(token string) (model.Identity, error) {
	ident, ok := f.sessions[token]
	if !ok {
		return model.Identity{}, errs.ErrUnauthenticated
	}
	return ident, nil
}

type fakeQuerier struct {
	records []model.AuditRecord
	err     error
	gotF    audit.Filter
}

func (f *fakeQuerier) Query(_ context.Context, flt audit.Filter) ([]model.AuditRecord, error) {
	f.gotF = flt
	return f.records, f.err
}

type fixture struct {
	auth    *fakeAuth
	svc     *fakeAccountSvc
	parser  *fakeParser
	querier *fakeQuerier
	router  *gin.Engine
}

func newFixture() *fixture {
	f := &fixture{
		auth:    &fakeAuth{},
		svc:     &fakeAccountSvc{},
		parser:  &fakeParser{sessions: map[string]model.Identity{}},
		querier: &fakeQuerier{},
	}
	srv := New(f.auth, f.svc, f.querier, f.parser, time.Hour, false, zap.NewNop())
	f.router = srv.Router()
	return f
}

func (f *fixture) addSession(token string, role model.Role, bootstrap bool) model.Identity {
	ident := model.Identity{
		AccountID:     uuid.Must(uuid.NewV4()),
		Username:      "someone",
		Role:          role,
		MustBootstrap: bootstrap,
	}
	f.parser.sessions[token] = ident
	return ident
}

func (f *fixture) do(t *testing.T, method, path, cookie string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: cookie})
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return m
}

func sessionCookieValue(w *httptest.ResponseRecorder) (string, bool) {
	for _, ck := range w.Result().Cookies() {
		if ck.Name == sessionCookie {
			return ck.Value, true
		}
	}
	return "", false
}

func TestLogin_Success_SetsCookie(t *testing.T) {
	f := newFixture()
	acc := model.Account{ID: uuid.Must(uuid.NewV4()), Username: "robert", Role: model.RoleAdmin}
	f.auth.loginRes = &service.LoginResult{Token: "tok-1", ExpiresAt: time.Now().Add(time.Hour), Account: acc}

	w := f.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Username: "robert", Password: "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if v, ok := sessionCookieValue(w); !ok || v != "tok-1" {
		t.Fatalf("session cookie = %q, %v; want tok-1", v, ok)
	}
	body := decode(t, w)
	if body["requiresPasswordChange"] != false {
		t.Fatalf("requiresPasswordChange = %v, want false", body["requiresPasswordChange"])
	}
	user := body["user"].(map[string]any)
	if user["username"] != "robert" || user["role"] != "admin" {
		t.Fatalf("user payload = %v", user)
	}
}

func TestLogin_InvalidCredentials_GenericMessage(t *testing.T) {
	f := newFixture()
	f.auth.loginErr = errs.ErrInvalidCredentials

	w := f.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Username: "ghost", Password: "nope"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if got := decode(t, w)["error"]; got != "invalid username or password" {
		t.Fatalf("error = %q", got)
	}
	if _, ok := sessionCookieValue(w); ok {
		t.Fatal("no cookie should be set on failure")
	}
}

func TestLogin_RateLimited_ReturnsResetAt(t *testing.T) {
	f := newFixture()
	reset := time.Now().Add(10 * time.Minute)
	f.auth.loginErr = &errs.RateLimitError{ResetAt: reset}

	w := f.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Username: "robert", Password: "secret"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := decode(t, w)["resetAt"]; got != reset.UTC().Format(time.RFC3339) {
		t.Fatalf("resetAt = %v", got)
	}
}

func TestLogin_StoreFault_Is503(t *testing.T) {
	f := newFixture()
	f.auth.loginErr = errs.ErrUnavailable

	w := f.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Username: "robert", Password: "secret"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestLogin_MissingFields_Is400(t *testing.T) {
	f := newFixture()
	w := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "robert"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if f.auth.loginCalls != 0 {
		t.Fatal("service must not be called on a malformed request")
	}
}

func TestSession_NoCookie_LoggedOut(t *testing.T) {
	f := newFixture()
	w := f.do(t, http.MethodGet, "/api/auth/session", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := decode(t, w)["isLoggedIn"]; got != false {
		t.Fatalf("isLoggedIn = %v, want false", got)
	}
}

func TestSession_InvalidToken_LoggedOutNotError(t *testing.T) {
	f := newFixture()
	w := f.do(t, http.MethodGet, "/api/auth/session", "forged", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := decode(t, w)["isLoggedIn"]; got != false {
		t.Fatalf("isLoggedIn = %v, want false", got)
	}
}

func TestSession_ValidToken_ReturnsIdentity(t *testing.T) {
	f := newFixture()
	ident := f.addSession("tok-1", model.RoleUser, true)

	w := f.do(t, http.MethodGet, "/api/auth/session", "tok-1", nil)
	body := decode(t, w)
	if body["isLoggedIn"] != true || body["userId"] != ident.AccountID.String() {
		t.Fatalf("body = %v", body)
	}
	if body["requiresPasswordChange"] != true {
		t.Fatal("bootstrap flag must surface in the session payload")
	}
}

func TestLogout_ValidSession_AuditsAndClearsCookie(t *testing.T) {
	f := newFixture()
	ident := f.addSession("tok-1", model.RoleUser, false)

	w := f.do(t, http.MethodPost, "/api/auth/logout", "tok-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(f.auth.logoutIDs) != 1 || f.auth.logoutIDs[0].AccountID != ident.AccountID {
		t.Fatalf("logout not recorded: %v", f.auth.logoutIDs)
	}
	if v, ok := sessionCookieValue(w); !ok || v != "" {
		t.Fatalf("cookie should be cleared, got %q %v", v, ok)
	}
}

func TestLogout_NoSession_StillSucceeds(t *testing.T) {
	f := newFixture()
	w := f.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(f.auth.logoutIDs) != 0 {
		t.Fatal("no audit record without a valid session")
	}
}

func TestSetPassword_Success_RotatesCookie(t *testing.T) {
	f := newFixture()
	f.addSession("boot-tok", model.RoleUser, true)
	acc := model.Account{ID: uuid.Must(uuid.NewV4()), Username: "carol", Role: model.RoleUser}
	f.auth.setRes = &service.LoginResult{Token: "full-tok", ExpiresAt: time.Now().Add(time.Hour), Account: acc}

	w := f.do(t, http.MethodPost, "/api/auth/set-password", "boot-tok", setPasswordRequest{NewPassword: "hunter2"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if v, _ := sessionCookieValue(w); v != "full-tok" {
		t.Fatalf("cookie = %q, want full-tok", v)
	}
}

func TestSetPassword_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"weak", errs.ErrWeakSecret, http.StatusBadRequest},
		{"already set", errs.ErrForbidden, http.StatusForbidden},
		{"stale token", errs.ErrUnauthenticated, http.StatusUnauthorized},
		{"store down", errs.ErrUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.addSession("boot-tok", model.RoleUser, true)
			f.auth.setErr = tc.err

			w := f.do(t, http.MethodPost, "/api/auth/set-password", "boot-tok", setPasswordRequest{NewPassword: "hunter2"})
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestSetPassword_NoSession_Is401(t *testing.T) {
	f := newFixture()
	w := f.do(t, http.MethodPost, "/api/auth/set-password", "", setPasswordRequest{NewPassword: "hunter2"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAdminRoutes_RequireFullAdminSession(t *testing.T) {
	cases := []struct {
		name   string
		cookie func(f *fixture) string
		want   int
	}{
		{"anonymous", func(*fixture) string { return "" }, http.StatusUnauthorized},
		{"forged token", func(*fixture) string { return "forged" }, http.StatusUnauthorized},
		{"bootstrap admin", func(f *fixture) string {
			f.addSession("boot", model.RoleAdmin, true)
			return "boot"
		}, http.StatusForbidden},
		{"plain user", func(f *fixture) string {
			f.addSession("user", model.RoleUser, false)
			return "user"
		}, http.StatusForbidden},
	}
	paths := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/users"},
		{http.MethodPost, "/api/users"},
		{http.MethodGet, "/api/audit-logs"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			cookie := tc.cookie(f)
			for _, p := range paths {
				w := f.do(t, p.method, p.path, cookie, nil)
				if w.Code != tc.want {
					t.Fatalf("%s %s: status = %d, want %d", p.method, p.path, w.Code, tc.want)
				}
			}
		})
	}
}

func TestCreateUser_Created(t *testing.T) {
	f := newFixture()
	f.addSession("admin", model.RoleAdmin, false)
	acc := model.Account{ID: uuid.Must(uuid.NewV4()), Username: "dave", Role: model.RoleUser, MustBootstrap: true}
	f.svc.created = &acc

	w := f.do(t, http.MethodPost, "/api/users", "admin", createUserRequest{Username: "dave", Role: "user"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	user := decode(t, w)["user"].(map[string]any)
	if user["requiresPasswordChange"] != true {
		t.Fatal("new users start bootstrap-pending")
	}
}

func TestCreateUser_DuplicateIs409(t *testing.T) {
	f := newFixture()
	f.addSession("admin", model.RoleAdmin, false)
	f.svc.createErr = errs.ErrAlreadyExists

	w := f.do(t, http.MethodPost, "/api/users", "admin", createUserRequest{Username: "dave", Role: "user"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestDeleteUser_SelfDeleteIs400(t *testing.T) {
	f := newFixture()
	f.addSession("admin", model.RoleAdmin, false)
	f.svc.deleteErr = service.ErrSelfDelete

	id := uuid.Must(uuid.NewV4())
	w := f.do(t, http.MethodDelete, "/api/users/"+id.String(), "admin", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestUserRoutes_BadIDIs400(t *testing.T) {
	f := newFixture()
	f.addSession("admin", model.RoleAdmin, false)

	w := f.do(t, http.MethodDelete, "/api/users/not-a-uuid", "admin", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(f.svc.deleted) != 0 {
		t.Fatal("service must not be called with a bad id")
	}
}

func TestResetPassword_CallsService(t *testing.T) {
	f := newFixture()
	f.addSession("admin", model.RoleAdmin, false)

	id := uuid.Must(uuid.NewV4())
	w := f.do(t, http.MethodPost, "/api/users/"+id.String()+"/reset-password", "admin", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(f.svc.resets) != 1 || f.svc.resets[0] != id {
		t.Fatalf("resets = %v, want [%s]", f.svc.resets, id)
	}
}

func TestAuditLogs_PassesFilters(t *testing.T) {
	f := newFixture()
	f.addSession("admin", model.RoleAdmin, false)
	f.querier.records = []model.AuditRecord{
		{ID: 2, Username: "robert", Action: audit.ActionLoginFailure, IP: "10.0.0.1", UserAgent: "curl", CreatedAt: time.Now()},
	}

	w := f.do(t, http.MethodGet, "/api/audit-logs?action=LOGIN_FAILURE&username=rob&limit=25", "admin", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if f.querier.gotF.Action != "LOGIN_FAILURE" || f.querier.gotF.UsernameContains != "rob" || f.querier.gotF.Limit != 25 {
		t.Fatalf("filter = %+v", f.querier.gotF)
	}
	logs := decode(t, w)["logs"].([]any)
	if len(logs) != 1 {
		t.Fatalf("logs = %v", logs)
	}
	rec := logs[0].(map[string]any)
	if rec["action"] != "LOGIN_FAILURE" || !strings.Contains(rec["username"].(string), "rob") {
		t.Fatalf("record = %v", rec)
	}
}
