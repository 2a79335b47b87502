package middlewares_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/contenthub/internal/auth"
	"github.com/geocoder89/contenthub/internal/domain/user"
	"github.com/geocoder89/contenthub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeLoader struct {
	getByIDFn func(ctx context.Context, id string) (user.User, error)
}

func (f *fakeLoader) GetByID(ctx context.Context, id string) (user.User, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return user.User{}, user.ErrNotFound
}

func loaderFor(users ...user.User) *fakeLoader {
	known := make(map[string]user.User, len(users))
	for _, u := range users {
		known[u.ID] = u
	}
	return &fakeLoader{
		getByIDFn: func(ctx context.Context, id string) (user.User, error) {
			if u, ok := known[id]; ok {
				return u, nil
			}
			return user.User{}, user.ErrNotFound
		},
	}
}

func get(r http.Handler, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	jwt := auth.NewManager("mw-test-secret", time.Hour)

	active := user.User{ID: uuid.NewString(), Role: user.RoleUser, Active: true}
	inactive := user.User{ID: uuid.NewString(), Role: user.RoleUser, Active: false}

	validToken, err := jwt.Issue(active.ID)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	inactiveToken, err := jwt.Issue(inactive.ID)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	orphanToken, err := jwt.Issue(uuid.NewString())
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	expiredToken, err := auth.NewManager("mw-test-secret", -time.Hour).Issue(active.ID)
	if err != nil {
		t.Fatalf("failed to issue expired token: %v", err)
	}

	foreignToken, err := auth.NewManager("other-secret", time.Hour).Issue(active.ID)
	if err != nil {
		t.Fatalf("failed to issue foreign token: %v", err)
	}

	mw := middlewares.NewAuthMiddleware(jwt, loaderFor(active, inactive))

	r := gin.New()
	r.GET("/private", mw.RequireAuth(), func(c *gin.Context) {
		u, _ := middlewares.UserFromContext(c)
		c.JSON(http.StatusOK, gin.H{"id": u.ID})
	})

	tests := []struct {
		name           string
		authorization  string
		wantStatusCode int
	}{
		{"valid_token", "Bearer " + validToken, http.StatusOK},
		{"no_header", "", http.StatusUnauthorized},
		{"wrong_scheme", "Basic abc123", http.StatusUnauthorized},
		{"bearer_without_token", "Bearer ", http.StatusUnauthorized},
		{"garbage_token", "Bearer garbage", http.StatusUnauthorized},
		{"expired_token", "Bearer " + expiredToken, http.StatusUnauthorized},
		{"wrong_secret", "Bearer " + foreignToken, http.StatusUnauthorized},
		{"unknown_subject", "Bearer " + orphanToken, http.StatusUnauthorized},
		{"deactivated_account", "Bearer " + inactiveToken, http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := get(r, "/private", tc.authorization)

			if w.Code != tc.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatusCode, w.Body.String())
			}

			// every rejection looks identical to the caller
			if tc.wantStatusCode == http.StatusUnauthorized {
				want := `{"code":"unauthorized","error":"Invalid token","success":false}`
				if w.Body.String() != want {
					t.Fatalf("401 body should be uniform, got %s", w.Body.String())
				}
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	jwt := auth.NewManager("mw-test-secret", time.Hour)

	active := user.User{ID: uuid.NewString(), Role: user.RoleUser, Active: true}

	token, err := jwt.Issue(active.ID)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	mw := middlewares.NewAuthMiddleware(jwt, loaderFor(active))

	r := gin.New()
	r.GET("/public", mw.OptionalAuth(), func(c *gin.Context) {
		if u, ok := middlewares.UserFromContext(c); ok {
			c.JSON(http.StatusOK, gin.H{"id": u.ID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": nil})
	})

	// anonymous requests pass without an identity
	w := get(r, "/public", "")
	if w.Code != http.StatusOK {
		t.Fatalf("anonymous: got status %d", w.Code)
	}

	// so do requests with a broken token
	w = get(r, "/public", "Bearer garbage")
	if w.Code != http.StatusOK {
		t.Fatalf("broken token: got status %d", w.Code)
	}

	// a valid token attaches the user
	w = get(r, "/public", "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token: got status %d", w.Code)
	}
	want := `{"id":"` + active.ID + `"}`
	if w.Body.String() != want {
		t.Fatalf("identity not attached, got %s", w.Body.String())
	}
}

func TestRequireRoles(t *testing.T) {
	jwt := auth.NewManager("mw-test-secret", time.Hour)

	admin := user.User{ID: uuid.NewString(), Role: user.RoleAdmin, Active: true}
	regular := user.User{ID: uuid.NewString(), Role: user.RoleUser, Active: true}

	adminToken, err := jwt.Issue(admin.ID)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	regularToken, err := jwt.Issue(regular.ID)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	mw := middlewares.NewAuthMiddleware(jwt, loaderFor(admin, regular))

	r := gin.New()
	r.GET("/admin-only", mw.RequireAuth(), mw.RequireRoles(user.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// no RequireAuth in front: role gate alone treats missing identity as 401
	r.GET("/misconfigured", mw.RequireRoles(user.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name           string
		path           string
		authorization  string
		wantStatusCode int
	}{
		{"admin_passes", "/admin-only", "Bearer " + adminToken, http.StatusOK},
		{"regular_user_forbidden", "/admin-only", "Bearer " + regularToken, http.StatusForbidden},
		{"anonymous_unauthorized", "/admin-only", "", http.StatusUnauthorized},
		{"missing_identity_context", "/misconfigured", "", http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := get(r, tc.path, tc.authorization)

			if w.Code != tc.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestOwnerOrAdmin(t *testing.T) {
	ownerID := uuid.NewString()

	tests := []struct {
		name  string
		actor user.User
		want  bool
	}{
		{"owner", user.User{ID: ownerID, Role: user.RoleUser}, true},
		{"admin", user.User{ID: uuid.NewString(), Role: user.RoleAdmin}, true},
		{"stranger", user.User{ID: uuid.NewString(), Role: user.RoleUser}, false},
		{"zero_actor", user.User{}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := middlewares.OwnerOrAdmin(tc.actor, ownerID); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
