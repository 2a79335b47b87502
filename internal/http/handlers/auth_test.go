package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/contenthub/internal/auth"
	"github.com/geocoder89/contenthub/internal/domain/user"
	"github.com/geocoder89/contenthub/internal/http/handlers"
	"github.com/geocoder89/contenthub/internal/http/middlewares"
	"github.com/geocoder89/contenthub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

func testManager() *auth.Manager {
	return auth.NewManager("test-secret-key", 30*24*time.Hour)
}

// Fake repository implementing handlers.UserReader + handlers.UserWriter

type fakeUsersRepo struct {
	getByEmailFn func(ctx context.Context, email string) (user.User, error)
	getByIDFn    func(ctx context.Context, id string) (user.User, error)
	createFn     func(ctx context.Context, name, email, passwordHash, role string, active bool) (user.User, error)
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

func (f *fakeUsersRepo) Create(ctx context.Context, name, email, passwordHash, role string, active bool) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, name, email, passwordHash, role, active)
	}

	now := time.Now().UTC()

	return user.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Active:       active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func doJSON(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope

	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to unmarshal envelope: %v, body=%s", err, w.Body.String())
	}

	return env
}

func TestRegisterHandler(t *testing.T) {
	jwt := testManager()

	tests := []struct {
		name           string
		body           string
		repoSetUp      func(*fakeUsersRepo)
		wantStatusCode int
		wantCode       string
	}{
		{
			name:           "success_defaults_to_user_role",
			body:           `{"name":"Alice","email":"a@x.com","password":"password1"}`,
			repoSetUp:      func(f *fakeUsersRepo) {},
			wantStatusCode: http.StatusCreated,
		},
		{
			name: "duplicate_email",
			body: `{"name":"Alice","email":"a@x.com","password":"password1"}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, name, email, hash, role string, active bool) (user.User, error) {
					return user.User{}, user.ErrEmailTaken
				}
			},
			wantStatusCode: http.StatusConflict,
			wantCode:       "email_taken",
		},
		{
			name:           "validation_error_short_password",
			body:           `{"name":"Alice","email":"a@x.com","password":"short"}`,
			repoSetUp:      func(f *fakeUsersRepo) {},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "validation_error_bad_email",
			body:           `{"name":"Alice","email":"nope","password":"password1"}`,
			repoSetUp:      func(f *fakeUsersRepo) {},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "store_failure",
			body: `{"name":"Alice","email":"a@x.com","password":"password1"}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, name, email, hash, role string, active bool) (user.User, error) {
					return user.User{}, errors.New("store down")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}
			tc.repoSetUp(repo)

			h := handlers.NewAuthHandler(repo, repo, jwt, nil)

			r := gin.New()
			r.POST("/api/auth/register", h.Register)

			w := doJSON(r, http.MethodPost, "/api/auth/register", tc.body, nil)

			if w.Code != tc.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatusCode, w.Body.String())
			}

			env := decodeEnvelope(t, w)

			if tc.wantCode != "" && env.Code != tc.wantCode {
				t.Fatalf("got code %q, want %q", env.Code, tc.wantCode)
			}

			if tc.wantStatusCode != http.StatusCreated {
				if env.Success {
					t.Fatalf("error responses must have success=false")
				}
				return
			}

			var data struct {
				ID    string `json:"id"`
				Email string `json:"email"`
				Role  string `json:"role"`
				Token string `json:"token"`
			}
			if err := json.Unmarshal(env.Data, &data); err != nil {
				t.Fatalf("failed to unmarshal data: %v", err)
			}

			if data.Role != "user" {
				t.Fatalf("default role should be user, got %q", data.Role)
			}

			// the issued token must resolve back to the new user id
			claims, err := jwt.Validate(data.Token)
			if err != nil {
				t.Fatalf("issued token failed validation: %v", err)
			}
			if claims.UserID() != data.ID {
				t.Fatalf("token subject %q != user id %q", claims.UserID(), data.ID)
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	jwt := testManager()

	hash := mustHash(t, "correct-pass")

	stored := user.User{
		ID:           uuid.NewString(),
		Name:         "Alice",
		Email:        "a@x.com",
		PasswordHash: hash,
		Role:         "user",
		Active:       true,
	}

	tests := []struct {
		name           string
		body           string
		repoSetUp      func(*fakeUsersRepo)
		wantStatusCode int
		wantError      string
	}{
		{
			name: "success",
			body: `{"email":"a@x.com","password":"correct-pass"}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return stored, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "unknown_email",
			body:           `{"email":"nobody@x.com","password":"correct-pass"}`,
			repoSetUp:      func(f *fakeUsersRepo) {},
			wantStatusCode: http.StatusUnauthorized,
			wantError:      "Email or password is incorrect.",
		},
		{
			name: "wrong_password",
			body: `{"email":"a@x.com","password":"wrong-pass"}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return stored, nil
				}
			},
			wantStatusCode: http.StatusUnauthorized,
			wantError:      "Email or password is incorrect.",
		},
		{
			name: "inactive_account",
			body: `{"email":"a@x.com","password":"correct-pass"}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					inactive := stored
					inactive.Active = false
					return inactive, nil
				}
			},
			wantStatusCode: http.StatusUnauthorized,
			wantError:      "Account is deactivated.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}
			tc.repoSetUp(repo)

			h := handlers.NewAuthHandler(repo, repo, jwt, nil)

			r := gin.New()
			r.POST("/api/auth/login", h.Login)

			w := doJSON(r, http.MethodPost, "/api/auth/login", tc.body, nil)

			if w.Code != tc.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatusCode, w.Body.String())
			}

			env := decodeEnvelope(t, w)

			if tc.wantError != "" && env.Error != tc.wantError {
				t.Fatalf("got error %q, want %q", env.Error, tc.wantError)
			}

			if tc.wantStatusCode == http.StatusOK {
				var data struct {
					ID    string `json:"id"`
					Token string `json:"token"`
				}
				if err := json.Unmarshal(env.Data, &data); err != nil {
					t.Fatalf("failed to unmarshal data: %v", err)
				}

				claims, err := jwt.Validate(data.Token)
				if err != nil {
					t.Fatalf("issued token failed validation: %v", err)
				}
				if claims.UserID() != stored.ID {
					t.Fatalf("token subject %q != user id %q", claims.UserID(), stored.ID)
				}
			}
		})
	}
}

func TestRefreshHandler(t *testing.T) {
	jwt := testManager()

	active := user.User{ID: uuid.NewString(), Active: true}

	validToken, err := jwt.Issue(active.ID)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	expired := auth.NewManager("test-secret-key", -time.Hour)
	expiredToken, err := expired.Issue(active.ID)
	if err != nil {
		t.Fatalf("failed to issue expired token: %v", err)
	}

	tests := []struct {
		name           string
		body           string
		repoSetUp      func(*fakeUsersRepo)
		wantStatusCode int
	}{
		{
			name: "success_issues_new_token",
			body: `{"token":"` + validToken + `"}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.getByIDFn = func(ctx context.Context, id string) (user.User, error) {
					return active, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "missing_token",
			body:           `{}`,
			repoSetUp:      func(f *fakeUsersRepo) {},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "garbage_token",
			body:           `{"token":"garbage"}`,
			repoSetUp:      func(f *fakeUsersRepo) {},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "expired_token",
			body:           `{"token":"` + expiredToken + `"}`,
			repoSetUp:      func(f *fakeUsersRepo) {},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "user_gone",
			body:           `{"token":"` + validToken + `"}`,
			repoSetUp:      func(f *fakeUsersRepo) {},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name: "user_deactivated",
			body: `{"token":"` + validToken + `"}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.getByIDFn = func(ctx context.Context, id string) (user.User, error) {
					inactive := active
					inactive.Active = false
					return inactive, nil
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}
			tc.repoSetUp(repo)

			h := handlers.NewAuthHandler(repo, repo, jwt, nil)

			r := gin.New()
			r.POST("/api/auth/refresh", h.Refresh)

			w := doJSON(r, http.MethodPost, "/api/auth/refresh", tc.body, nil)

			if w.Code != tc.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatusCode, w.Body.String())
			}

			if tc.wantStatusCode != http.StatusOK {
				return
			}

			env := decodeEnvelope(t, w)

			var data struct {
				Token string `json:"token"`
			}
			if err := json.Unmarshal(env.Data, &data); err != nil {
				t.Fatalf("failed to unmarshal data: %v", err)
			}

			if data.Token == "" || data.Token == validToken {
				t.Fatalf("refresh must issue a brand-new token")
			}

			// both old and new tokens stay valid (stateless design)
			if _, err := jwt.Validate(validToken); err != nil {
				t.Fatalf("old token should remain valid: %v", err)
			}
			if _, err := jwt.Validate(data.Token); err != nil {
				t.Fatalf("new token should be valid: %v", err)
			}
		})
	}
}

func TestMeAndLogoutHandlers(t *testing.T) {
	jwt := testManager()

	stored := user.User{
		ID:     uuid.NewString(),
		Name:   "Alice",
		Email:  "a@x.com",
		Role:   "user",
		Active: true,
	}

	repo := &fakeUsersRepo{
		getByIDFn: func(ctx context.Context, id string) (user.User, error) {
			if id == stored.ID {
				return stored, nil
			}
			return user.User{}, user.ErrNotFound
		},
	}

	h := handlers.NewAuthHandler(repo, repo, jwt, nil)
	authmw := middlewares.NewAuthMiddleware(jwt, repo)

	r := gin.New()
	r.GET("/api/auth/me", authmw.RequireAuth(), h.Me)
	r.POST("/api/auth/logout", authmw.RequireAuth(), h.Logout)

	token, err := jwt.Issue(stored.ID)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	// me with a valid token returns the profile, never the hash
	w := doJSON(r, http.MethodGet, "/api/auth/me", "", map[string]string{"Authorization": "Bearer " + token})

	if w.Code != http.StatusOK {
		t.Fatalf("me: got status %d, body=%s", w.Code, w.Body.String())
	}

	env := decodeEnvelope(t, w)

	var profile map[string]interface{}
	if err := json.Unmarshal(env.Data, &profile); err != nil {
		t.Fatalf("failed to unmarshal profile: %v", err)
	}

	if profile["email"] != stored.Email {
		t.Fatalf("me returned wrong profile: %v", profile)
	}
	if _, leaked := profile["passwordHash"]; leaked {
		t.Fatalf("profile must not contain the password hash")
	}

	// me without a token is rejected
	w = doJSON(r, http.MethodGet, "/api/auth/me", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("me without token: got status %d", w.Code)
	}

	// logout always succeeds and the token keeps working afterwards
	w = doJSON(r, http.MethodPost, "/api/auth/logout", "", map[string]string{"Authorization": "Bearer " + token})
	if w.Code != http.StatusOK {
		t.Fatalf("logout: got status %d, body=%s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodGet, "/api/auth/me", "", map[string]string{"Authorization": "Bearer " + token})
	if w.Code != http.StatusOK {
		t.Fatalf("token should survive logout (stateless), got status %d", w.Code)
	}
}

func TestAuthOutcomeMetrics(t *testing.T) {
	jwt := testManager()
	prom := observability.NewProm(prometheus.NewRegistry())

	stored := user.User{
		ID:           uuid.NewString(),
		Name:         "Alice",
		Email:        "a@x.com",
		PasswordHash: mustHash(t, "correct-pass"),
		Role:         "user",
		Active:       true,
	}

	repo := &fakeUsersRepo{
		getByEmailFn: func(ctx context.Context, email string) (user.User, error) {
			if email == stored.Email {
				return stored, nil
			}
			return user.User{}, user.ErrNotFound
		},
		createFn: func(ctx context.Context, name, email, hash, role string, active bool) (user.User, error) {
			return user.User{}, user.ErrEmailTaken
		},
	}

	h := handlers.NewAuthHandler(repo, repo, jwt, prom)

	r := gin.New()
	r.POST("/api/auth/register", h.Register)
	r.POST("/api/auth/login", h.Login)

	doJSON(r, http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"correct-pass"}`, nil)
	doJSON(r, http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"wrong"}`, nil)
	doJSON(r, http.MethodPost, "/api/auth/login", `{"email":"nobody@x.com","password":"whatever"}`, nil)
	doJSON(r, http.MethodPost, "/api/auth/register", `{"name":"Bob","email":"a@x.com","password":"password1"}`, nil)

	if got := testutil.ToFloat64(prom.AuthResults.WithLabelValues("login", "ok")); got != 1 {
		t.Fatalf("login ok: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(prom.AuthResults.WithLabelValues("login", "rejected")); got != 2 {
		t.Fatalf("login rejected: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(prom.AuthResults.WithLabelValues("register", "rejected")); got != 1 {
		t.Fatalf("register rejected: got %v, want 1", got)
	}
}
