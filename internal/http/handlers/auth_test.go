package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/subletx/subletx/internal/auth"
	"github.com/subletx/subletx/internal/config"
	"github.com/subletx/subletx/internal/domain/user"
	"github.com/subletx/subletx/internal/http/handlers"
	"github.com/subletx/subletx/internal/http/middlewares"
	"github.com/subletx/subletx/internal/repo/postgres"
	"github.com/subletx/subletx/internal/security"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

func testJWT() *auth.Manager {
	return auth.NewManager("test-secret", 15*time.Minute, 7*24*time.Hour)
}

// Fake repository implementations of the handler interfaces

type fakeUsersRepo struct {
	createFn     func(ctx context.Context, email, passwordHash, displayName, upiID string) (user.User, error)
	getByEmailFn func(ctx context.Context, email string) (user.User, error)
	getByIDFn    func(ctx context.Context, id string) (user.User, error)

	createCalls int
}

func (f *fakeUsersRepo) Create(ctx context.Context, email, passwordHash, displayName, upiID string) (user.User, error) {
	f.createCalls++
	if f.createFn != nil {
		return f.createFn(ctx, email, passwordHash, displayName, upiID)
	}
	return user.User{}, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	if f.getByEmailFn != nil {
		return f.getByEmailFn(ctx, email)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return user.User{}, user.ErrNotFound
}

// fakeTx satisfies just the two pgx.Tx methods the handler touches.

type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Commit(ctx context.Context) error   { return nil }
func (fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeRefreshStore struct {
	rows map[string]postgres.RefreshTokenRow
}

func newFakeRefreshStore() *fakeRefreshStore {
	return &fakeRefreshStore{rows: make(map[string]postgres.RefreshTokenRow)}
}

func (f *fakeRefreshStore) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return fakeTx{}, nil
}

func (f *fakeRefreshStore) Create(ctx context.Context, tx pgx.Tx, row postgres.RefreshTokenRow) error {
	f.rows[row.ID] = row
	return nil
}

func (f *fakeRefreshStore) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (postgres.RefreshTokenRow, error) {
	row, ok := f.rows[id]
	if !ok {
		return postgres.RefreshTokenRow{}, postgres.ErrRefreshTokenNotFound
	}
	return row, nil
}

func (f *fakeRefreshStore) Revoke(ctx context.Context, tx pgx.Tx, id string, replacedBy *string) error {
	row, ok := f.rows[id]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	row.RevokedAt = &now
	row.ReplacedBy = replacedBy
	f.rows[id] = row
	return nil
}

func newAuthRouter(users *fakeUsersRepo, refresh *fakeRefreshStore, jwt *auth.Manager) *gin.Engine {
	h := handlers.NewAuthHandler(users, users, jwt, refresh, config.Config{Env: "test"})
	mw := middlewares.NewAuthMiddleware(jwt)

	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/auth/logout", h.Logout)
	r.GET("/auth/me", mw.RequireAuth(), h.Me)
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		repoSetUp      func(*fakeUsersRepo)
		wantStatusCode int
		wantCreates    int
	}{
		{
			name: "success",
			body: `{
				"email": "buyer@example.com",
				"password": "hunter2hunter2",
				"confirmPassword": "hunter2hunter2",
				"upiId": "buyer@upi",
				"displayName": "Buyer One"
			}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, email, hash, displayName, upiID string) (user.User, error) {
					if hash == "hunter2hunter2" {
						t.Fatal("password reached the store unhashed")
					}
					return user.User{
						ID:          "u-1",
						Email:       email,
						DisplayName: displayName,
						Role:        user.RoleBuyer,
						UpiID:       upiID,
					}, nil
				}
			},
			wantStatusCode: http.StatusCreated,
			wantCreates:    1,
		},
		{
			name: "password_mismatch_never_touches_store",
			body: `{
				"email": "buyer@example.com",
				"password": "hunter2hunter2",
				"confirmPassword": "different-password",
				"upiId": "buyer@upi"
			}`,
			wantStatusCode: http.StatusBadRequest,
			wantCreates:    0,
		},
		{
			name: "missing_upi_never_touches_store",
			body: `{
				"email": "buyer@example.com",
				"password": "hunter2hunter2",
				"confirmPassword": "hunter2hunter2"
			}`,
			wantStatusCode: http.StatusBadRequest,
			wantCreates:    0,
		},
		{
			name: "short_password",
			body: `{
				"email": "buyer@example.com",
				"password": "short",
				"confirmPassword": "short",
				"upiId": "buyer@upi"
			}`,
			wantStatusCode: http.StatusBadRequest,
			wantCreates:    0,
		},
		{
			name: "email_taken",
			body: `{
				"email": "taken@example.com",
				"password": "hunter2hunter2",
				"confirmPassword": "hunter2hunter2",
				"upiId": "buyer@upi"
			}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, email, hash, displayName, upiID string) (user.User, error) {
					return user.User{}, postgres.ErrEmailAlreadyUsed
				}
			},
			wantStatusCode: http.StatusBadRequest,
			wantCreates:    1,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			users := &fakeUsersRepo{}
			if tt.repoSetUp != nil {
				tt.repoSetUp(users)
			}

			r := newAuthRouter(users, newFakeRefreshStore(), testJWT())

			w := postJSON(r, "/auth/register", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
			if users.createCalls != tt.wantCreates {
				t.Fatalf("store Create called %d times, want %d", users.createCalls, tt.wantCreates)
			}
		})
	}
}

func TestRegisterSetsRefreshCookie(t *testing.T) {
	users := &fakeUsersRepo{
		createFn: func(ctx context.Context, email, hash, displayName, upiID string) (user.User, error) {
			return user.User{ID: "u-1", Email: email, Role: user.RoleBuyer, UpiID: upiID}, nil
		},
	}
	refresh := newFakeRefreshStore()
	r := newAuthRouter(users, refresh, testJWT())

	w := postJSON(r, "/auth/register", `{
		"email": "buyer@example.com",
		"password": "hunter2hunter2",
		"confirmPassword": "hunter2hunter2",
		"upiId": "buyer@upi"
	}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == "refresh_token" {
			found = true
			if !c.HttpOnly {
				t.Fatal("refresh cookie must be HttpOnly")
			}
			if c.Path != "/auth" {
				t.Fatalf("cookie path = %q", c.Path)
			}
		}
	}
	if !found {
		t.Fatal("no refresh cookie set")
	}
	if len(refresh.rows) != 1 {
		t.Fatalf("stored %d refresh rows, want 1", len(refresh.rows))
	}
}

func TestLoginHandler(t *testing.T) {
	hash, err := security.HashPassword("correct-password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	known := user.User{
		ID:           "u-1",
		Email:        "buyer@example.com",
		PasswordHash: hash,
		Role:         user.RoleBuyer,
		UpiID:        "buyer@upi",
	}

	tests := []struct {
		name           string
		body           string
		wantStatusCode int
	}{
		{
			name:           "success",
			body:           `{"email": "buyer@example.com", "password": "correct-password"}`,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "wrong_password",
			body:           `{"email": "buyer@example.com", "password": "wrong"}`,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "unknown_email",
			body:           `{"email": "nobody@example.com", "password": "correct-password"}`,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "malformed_email",
			body:           `{"email": "not-an-email", "password": "correct-password"}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			users := &fakeUsersRepo{
				getByEmailFn: func(ctx context.Context, email string) (user.User, error) {
					if email == known.Email {
						return known, nil
					}
					return user.User{}, user.ErrNotFound
				},
			}

			r := newAuthRouter(users, newFakeRefreshStore(), testJWT())

			w := postJSON(r, "/auth/login", tt.body)
			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusOK {
				var resp struct {
					AccessToken string `json:"accessToken"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if resp.AccessToken == "" {
					t.Fatal("no access token in response")
				}
			}
		})
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	jwt := testJWT()
	refresh := newFakeRefreshStore()

	known := user.User{ID: "u-1", Email: "buyer@example.com", Role: user.RoleBuyer}

	hash, _ := security.HashPassword("correct-password")
	known.PasswordHash = hash

	users := &fakeUsersRepo{
		getByEmailFn: func(ctx context.Context, email string) (user.User, error) {
			return known, nil
		},
	}

	r := newAuthRouter(users, refresh, jwt)

	// login to obtain the first refresh cookie
	login := postJSON(r, "/auth/login", `{"email": "buyer@example.com", "password": "correct-password"}`)
	if login.Code != http.StatusOK {
		t.Fatalf("login status = %d", login.Code)
	}

	var cookie *http.Cookie
	for _, c := range login.Result().Cookies() {
		if c.Name == "refresh_token" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("login set no refresh cookie")
	}

	doRefresh := func(c *http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		req.AddCookie(c)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := doRefresh(cookie)
	if first.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body=%s", first.Code, first.Body.String())
	}

	// the old token is revoked: replaying it must fail
	replay := doRefresh(cookie)
	if replay.Code != http.StatusUnauthorized {
		t.Fatalf("replayed refresh status = %d, want 401", replay.Code)
	}

	// the rotated token still works
	var rotated *http.Cookie
	for _, c := range first.Result().Cookies() {
		if c.Name == "refresh_token" {
			rotated = c
		}
	}
	if rotated == nil {
		t.Fatal("refresh set no new cookie")
	}
	second := doRefresh(rotated)
	if second.Code != http.StatusOK {
		t.Fatalf("rotated refresh status = %d, body=%s", second.Code, second.Body.String())
	}
}

func TestMeRequiresToken(t *testing.T) {
	jwt := testJWT()
	users := &fakeUsersRepo{
		getByIDFn: func(ctx context.Context, id string) (user.User, error) {
			return user.User{ID: id, Email: "buyer@example.com", Role: user.RoleBuyer}, nil
		},
	}
	r := newAuthRouter(users, newFakeRefreshStore(), jwt)

	// no token
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous /auth/me status = %d", w.Code)
	}

	// valid token
	token, err := jwt.GenerateAccessToken("u-1", "buyer@example.com", user.RoleBuyer)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("authed /auth/me status = %d, body=%s", w.Code, w.Body.String())
	}

	var got user.User
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "u-1" {
		t.Fatalf("id = %q", got.ID)
	}
}
