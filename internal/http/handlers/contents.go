package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/contenthub/internal/config"
	"github.com/geocoder89/contenthub/internal/domain/content"
	"github.com/geocoder89/contenthub/internal/domain/user"
	"github.com/geocoder89/contenthub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type ContentsStore interface {
	List(ctx context.Context, f content.ListFilter) ([]content.View, int, error)
	GetByID(ctx context.Context, id string) (content.View, error)
	Create(ctx context.Context, c content.Content) (content.Content, error)
	Update(ctx context.Context, id string, req content.UpdateContentRequest) (content.View, error)
	Delete(ctx context.Context, id string) error
	Publish(ctx context.Context, id string) (content.View, error)
	Unpublish(ctx context.Context, id string) (content.View, error)
}

type ContentsHandler struct {
	repo ContentsStore
}

func NewContentsHandler(repo ContentsStore) *ContentsHandler {
	return &ContentsHandler{repo: repo}
}

// GET /api/content?type=&category=&tag=&status=&search=&page=&limit=&sort=
//
// Anonymous and non-admin callers only ever see published items, whatever
// status filter they ask for.
func (h *ContentsHandler) List(ctx *gin.Context) {
	q, ok := parsePageQuery(ctx)

	if !ok {
		return
	}

	filter := content.ListFilter{
		Sort:   q.Sort,
		Limit:  q.Limit,
		Offset: q.Offset(),
	}

	if t := ctx.Query("type"); t != "" {
		filter.Type = &t
	}

	if cat := ctx.Query("category"); cat != "" {
		filter.Category = &cat
	}

	if tag := ctx.Query("tag"); tag != "" {
		filter.Tag = &tag
	}

	if status := ctx.Query("status"); status != "" {
		filter.Status = &status
	}

	if search := ctx.Query("search"); search != "" {
		filter.Search = &search
	}

	actor, authed := middlewares.UserFromContext(ctx)

	if !authed || actor.Role != user.RoleAdmin {
		published := content.StatusPublished
		filter.Status = &published
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, total, err := h.repo.List(cctx, filter)

	if err != nil {
		RespondInternal(ctx, "Could not list content")
		return
	}

	RespondDataWithETag(ctx, http.StatusOK, gin.H{
		"contents":   items,
		"pagination": buildPagination(total, q),
	})
}

// GET /api/content/:id
//
// Unpublished items are visible only to their author or an admin.
func (h *ContentsHandler) Get(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	item, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			RespondNotFound(ctx, "Content not found")
			return
		}
		RespondInternal(ctx, "Could not fetch content")
		return
	}

	if item.Status != content.StatusPublished {
		actor, authed := middlewares.UserFromContext(ctx)

		if !authed || !middlewares.OwnerOrAdmin(actor, item.AuthorID) {
			RespondForbidden(ctx, "Not authorized to access this content")
			return
		}
	}

	RespondDataWithETag(ctx, http.StatusOK, item)
}

// POST /api/content   (authenticated; author is always the caller)
func (h *ContentsHandler) Create(ctx *gin.Context) {
	var req content.CreateContentRequest

	if !BindJSON(ctx, &req) {
		return
	}

	actor, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	c, err := h.repo.Create(cctx, content.NewFromCreateRequest(req, actor.ID))

	if err != nil {
		RespondInternal(ctx, "Could not create content")
		return
	}

	RespondData(ctx, http.StatusCreated, c)
}

// PUT /api/content/:id   (author or admin; the author field is immutable)
func (h *ContentsHandler) Update(ctx *gin.Context) {
	item, ok := h.loadOwned(ctx, "Not authorized to update this content")

	if !ok {
		return
	}

	var req content.UpdateContentRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	updated, err := h.repo.Update(cctx, item.ID, req)

	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			RespondNotFound(ctx, "Content not found")
			return
		}
		RespondInternal(ctx, "Could not update content")
		return
	}

	RespondData(ctx, http.StatusOK, updated)
}

// DELETE /api/content/:id   (author or admin)
func (h *ContentsHandler) Delete(ctx *gin.Context) {
	item, ok := h.loadOwned(ctx, "Not authorized to delete this content")

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.repo.Delete(cctx, item.ID); err != nil {
		if errors.Is(err, content.ErrNotFound) {
			RespondNotFound(ctx, "Content not found")
			return
		}
		RespondInternal(ctx, "Could not delete content")
		return
	}

	RespondData(ctx, http.StatusOK, gin.H{"message": "Content deleted successfully"})
}

// PUT /api/content/:id/publish   (author or admin)
func (h *ContentsHandler) Publish(ctx *gin.Context) {
	item, ok := h.loadOwned(ctx, "Not authorized to publish this content")

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	published, err := h.repo.Publish(cctx, item.ID)

	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			RespondNotFound(ctx, "Content not found")
			return
		}
		RespondInternal(ctx, "Could not publish content")
		return
	}

	RespondData(ctx, http.StatusOK, published)
}

// PUT /api/content/:id/unpublish   (author or admin; idempotent on drafts)
func (h *ContentsHandler) Unpublish(ctx *gin.Context) {
	item, ok := h.loadOwned(ctx, "Not authorized to unpublish this content")

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	unpublished, err := h.repo.Unpublish(cctx, item.ID)

	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			RespondNotFound(ctx, "Content not found")
			return
		}
		RespondInternal(ctx, "Could not unpublish content")
		return
	}

	RespondData(ctx, http.StatusOK, unpublished)
}

// loadOwned fetches the target item and runs the ownership gate. Responds
// and returns false when the caller may not touch it.
func (h *ContentsHandler) loadOwned(ctx *gin.Context, denyMessage string) (content.View, bool) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	item, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			RespondNotFound(ctx, "Content not found")
			return content.View{}, false
		}
		RespondInternal(ctx, "Could not fetch content")
		return content.View{}, false
	}

	actor, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return content.View{}, false
	}

	if !middlewares.OwnerOrAdmin(actor, item.AuthorID) {
		RespondForbidden(ctx, denyMessage)
		return content.View{}, false
	}

	return item, true
}
