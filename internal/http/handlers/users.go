package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/geocoder89/contenthub/internal/config"
	"github.com/geocoder89/contenthub/internal/domain/user"
	"github.com/geocoder89/contenthub/internal/http/middlewares"
	"github.com/geocoder89/contenthub/internal/security"
	"github.com/gin-gonic/gin"
)

type UsersStore interface {
	List(ctx context.Context, f user.ListFilter) ([]user.User, int, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	Create(ctx context.Context, name, email, passwordHash, role string, active bool) (user.User, error)
	Update(ctx context.Context, id string, changes user.Changes) (user.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
}

type UsersHandler struct {
	repo UsersStore
}

func NewUsersHandler(repo UsersStore) *UsersHandler {
	return &UsersHandler{repo: repo}
}

// GET /api/users?role=&active=&search=&page=&limit=&sort=   (admin only)
func (h *UsersHandler) List(ctx *gin.Context) {
	q, ok := parsePageQuery(ctx)

	if !ok {
		return
	}

	filter := user.ListFilter{
		Sort:   q.Sort,
		Limit:  q.Limit,
		Offset: q.Offset(),
	}

	if role := ctx.Query("role"); role != "" {
		filter.Role = &role
	}

	if active := ctx.Query("active"); active != "" {
		b, err := strconv.ParseBool(active)

		if err != nil {
			RespondBadRequest(ctx, "active must be a boolean", nil)
			return
		}

		filter.Active = &b
	}

	if search := ctx.Query("search"); search != "" {
		filter.Search = &search
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	users, total, err := h.repo.List(cctx, filter)

	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	views := make([]user.Public, 0, len(users))

	for _, u := range users {
		views = append(views, u.Public())
	}

	RespondData(ctx, http.StatusOK, gin.H{
		"users":      views,
		"pagination": buildPagination(total, q),
	})
}

// GET /api/users/:id   (admin or self)
func (h *UsersHandler) Get(ctx *gin.Context) {
	id := ctx.Param("id")

	actor, _ := middlewares.UserFromContext(ctx)

	if !middlewares.OwnerOrAdmin(actor, id) {
		RespondForbidden(ctx, "Not authorized to access this user profile")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not fetch user")
		return
	}

	RespondData(ctx, http.StatusOK, u.Public())
}

// POST /api/users   (admin only)
func (h *UsersHandler) Create(ctx *gin.Context) {
	var req user.CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	role := req.Role

	if role == "" {
		role = user.RoleUser
	}

	active := true

	if req.Active != nil {
		active = *req.Active
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.repo.Create(cctx, req.Name, req.Email, hash, role, active)

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}
		RespondInternal(ctx, "Could not create user")
		return
	}

	RespondData(ctx, http.StatusCreated, u.Public())
}

// PUT /api/users/:id   (admin or self; only admins may change role/active)
func (h *UsersHandler) Update(ctx *gin.Context) {
	id := ctx.Param("id")

	actor, _ := middlewares.UserFromContext(ctx)

	if !middlewares.OwnerOrAdmin(actor, id) {
		RespondForbidden(ctx, "Not authorized to update this user")
		return
	}

	var req user.UpdateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	changes := user.Changes{
		Name:  req.Name,
		Email: req.Email,
	}

	// role and active flags stay admin-only; for everyone else they are
	// silently dropped, matching how the API has always behaved
	if actor.Role == user.RoleAdmin {
		changes.Role = req.Role
		changes.Active = req.Active
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.repo.Update(cctx, id, changes)

	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, "User not found")
		case errors.Is(err, user.ErrEmailTaken):
			RespondConflict(ctx, "email_taken", "Email is already in use.")
		default:
			RespondInternal(ctx, "Could not update user")
		}
		return
	}

	RespondData(ctx, http.StatusOK, u.Public())
}

// DELETE /api/users/:id   (admin only; removes the record permanently)
func (h *UsersHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.repo.Delete(cctx, id)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not delete user")
		return
	}

	RespondData(ctx, http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// POST /api/users/change-password   (self; requires the current password)
func (h *UsersHandler) ChangePassword(ctx *gin.Context) {
	actor, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req user.ChangePasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	// re-read the record so the check runs against the stored hash, not a
	// possibly stale context copy
	u, err := h.repo.GetByID(cctx, actor.ID)

	if err != nil {
		RespondInternal(ctx, "Could not change password")
		return
	}

	if err := security.CheckPassword(u.PasswordHash, req.CurrentPassword); err != nil {
		RespondBadRequest(ctx, "Current password is incorrect", nil)
		return
	}

	hash, err := security.HashPassword(req.NewPassword)

	if err != nil {
		RespondInternal(ctx, "Could not change password")
		return
	}

	if err := h.repo.UpdatePassword(cctx, u.ID, hash); err != nil {
		RespondInternal(ctx, "Could not change password")
		return
	}

	RespondData(ctx, http.StatusOK, gin.H{"message": "Password changed successfully"})
}
