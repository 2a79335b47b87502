package content

import (
	"errors"
	"time"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

const (
	TypeArticle  = "article"
	TypePage     = "page"
	TypePost     = "post"
	TypeDocument = "document"
)

const DefaultCategory = "uncategorized"

var ErrNotFound = errors.New("content not found")

type Content struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Body          string     `json:"body"`
	Type          string     `json:"type"`
	AuthorID      string     `json:"authorId"`
	Status        string     `json:"status"`
	Tags          []string   `json:"tags"`
	PublishedAt   *time.Time `json:"publishedAt"`
	FeaturedImage *string    `json:"featuredImage"`
	Category      string     `json:"category"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// AuthorSummary is the slice of the author record that reads embed.
type AuthorSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// View is a content item with its author resolved, the shape every read
// operation returns.
type View struct {
	Content
	Author AuthorSummary `json:"author"`
}

// with pointers if optional, it will be nil
type ListFilter struct {
	Type     *string
	Category *string
	Tag      *string
	Status   *string
	Search   *string
	Sort     string
	Limit    int
	Offset   int
}

type CreateContentRequest struct {
	Title         string   `json:"title" binding:"required,min=1,max=100"`
	Description   string   `json:"description" binding:"required,max=500"`
	Body          string   `json:"body" binding:"required"`
	Type          string   `json:"type" binding:"omitempty,oneof=article page post document"`
	Tags          []string `json:"tags" binding:"omitempty,dive,min=1,max=50"`
	FeaturedImage *string  `json:"featuredImage"`
	Category      string   `json:"category" binding:"omitempty,max=80"`
}

// partial update; the author is immutable and deliberately absent here.
type UpdateContentRequest struct {
	Title         *string   `json:"title" binding:"omitempty,min=1,max=100"`
	Description   *string   `json:"description" binding:"omitempty,max=500"`
	Body          *string   `json:"body" binding:"omitempty"`
	Type          *string   `json:"type" binding:"omitempty,oneof=article page post document"`
	Status        *string   `json:"status" binding:"omitempty,oneof=draft published archived"`
	Tags          *[]string `json:"tags" binding:"omitempty,dive,min=1,max=50"`
	FeaturedImage *string   `json:"featuredImage"`
	Category      *string   `json:"category" binding:"omitempty,max=80"`
}

// NewFromCreateRequest fills defaults the same way the store schema does, so
// handlers and repos agree on what an unspecified field means.
func NewFromCreateRequest(req CreateContentRequest, authorID string) Content {
	c := Content{
		Title:         req.Title,
		Description:   req.Description,
		Body:          req.Body,
		Type:          req.Type,
		AuthorID:      authorID,
		Status:        StatusDraft,
		Tags:          req.Tags,
		FeaturedImage: req.FeaturedImage,
		Category:      req.Category,
	}

	if c.Type == "" {
		c.Type = TypePost
	}

	if c.Category == "" {
		c.Category = DefaultCategory
	}

	if c.Tags == nil {
		c.Tags = []string{}
	}

	return c
}
