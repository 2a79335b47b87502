package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/contenthub/internal/domain/content"
	"github.com/geocoder89/contenthub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const contentViewColumns = `c.id, c.title, c.description, c.body, c.type, c.author_id, c.status,
	c.tags, c.published_at, c.featured_image, c.category, c.created_at, c.updated_at,
	u.id, u.name, u.email`

type ContentsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewContentsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ContentsRepo {
	return &ContentsRepo{pool: pool, prom: prom}
}

func (r *ContentsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanContentView(row pgx.Row) (content.View, error) {
	var v content.View

	err := row.Scan(
		&v.ID,
		&v.Title,
		&v.Description,
		&v.Body,
		&v.Type,
		&v.AuthorID,
		&v.Status,
		&v.Tags,
		&v.PublishedAt,
		&v.FeaturedImage,
		&v.Category,
		&v.CreatedAt,
		&v.UpdatedAt,
		&v.Author.ID,
		&v.Author.Name,
		&v.Author.Email,
	)

	return v, err
}

func (r *ContentsRepo) Create(ctx context.Context, c content.Content) (content.Content, error) {
	now := time.Now().UTC()

	c.ID = uuid.NewString()
	c.CreatedAt = now
	c.UpdatedAt = now

	err := r.observe("contents.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO contents (id, title, description, body, type, author_id, status, tags,
			 published_at, featured_image, category, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			c.ID, c.Title, c.Description, c.Body, c.Type, c.AuthorID, c.Status, c.Tags,
			c.PublishedAt, c.FeaturedImage, c.Category, c.CreatedAt, c.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return content.Content{}, err
	}

	return c, nil
}

func (r *ContentsRepo) GetByID(ctx context.Context, id string) (content.View, error) {
	var v content.View
	var err error

	err = r.observe("contents.get_by_id", func() error {
		v, err = scanContentView(r.pool.QueryRow(ctx,
			`SELECT `+contentViewColumns+`
			 FROM contents c
			 JOIN users u ON u.id = c.author_id
			 WHERE c.id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return content.View{}, content.ErrNotFound
		}
		return content.View{}, err
	}

	return v, nil
}

func (r *ContentsRepo) List(ctx context.Context, f content.ListFilter) ([]content.View, int, error) {
	baseQuery := `SELECT ` + contentViewColumns + `, COUNT(*) OVER() AS total
	FROM contents c
	JOIN users u ON u.id = c.author_id
	`

	var conds []string
	var args []interface{}

	argsPosition := 1

	if f.Type != nil {
		conds = append(conds, fmt.Sprintf("c.type = $%d", argsPosition))
		args = append(args, *f.Type)
		argsPosition++
	}

	if f.Category != nil {
		conds = append(conds, fmt.Sprintf("c.category = $%d", argsPosition))
		args = append(args, *f.Category)
		argsPosition++
	}

	if f.Tag != nil {
		conds = append(conds, fmt.Sprintf("$%d = ANY(c.tags)", argsPosition))
		args = append(args, *f.Tag)
		argsPosition++
	}

	if f.Status != nil {
		conds = append(conds, fmt.Sprintf("c.status = $%d", argsPosition))
		args = append(args, *f.Status)
		argsPosition++
	}

	// substring search across title, description and body
	if f.Search != nil {
		conds = append(conds, fmt.Sprintf(
			"(c.title ILIKE $%d OR c.description ILIKE $%d OR c.body ILIKE $%d)",
			argsPosition, argsPosition, argsPosition))
		args = append(args, "%"+*f.Search+"%")
		argsPosition++
	}

	query := baseQuery

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	order := orderClause(f.Sort, contentSortColumns, "c.id", "c.created_at DESC, c.id DESC")

	query += fmt.Sprintf(" ORDER BY %s LIMIT $%d OFFSET $%d", order, argsPosition, argsPosition+1)
	args = append(args, f.Limit, f.Offset)

	var rows pgx.Rows

	err := r.observe("contents.list", func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, query, args...)
		return qerr
	})

	if err != nil {
		return nil, 0, err
	}

	defer rows.Close()

	output := make([]content.View, 0, f.Limit)
	total := 0

	for rows.Next() {
		var v content.View
		var t int

		err = rows.Scan(
			&v.ID, &v.Title, &v.Description, &v.Body, &v.Type, &v.AuthorID, &v.Status,
			&v.Tags, &v.PublishedAt, &v.FeaturedImage, &v.Category, &v.CreatedAt, &v.UpdatedAt,
			&v.Author.ID, &v.Author.Name, &v.Author.Email, &t,
		)

		if err != nil {
			return nil, 0, err
		}

		total = t
		output = append(output, v)
	}

	err = rows.Err()

	if err != nil {
		return nil, 0, err
	}

	return output, total, nil
}

func (r *ContentsRepo) Update(ctx context.Context, id string, req content.UpdateContentRequest) (content.View, error) {
	var sets []string
	var args []interface{}

	args = append(args, id)
	argsPosition := 2

	set := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, argsPosition))
		args = append(args, val)
		argsPosition++
	}

	if req.Title != nil {
		set("title", *req.Title)
	}
	if req.Description != nil {
		set("description", *req.Description)
	}
	if req.Body != nil {
		set("body", *req.Body)
	}
	if req.Type != nil {
		set("type", *req.Type)
	}
	if req.Status != nil {
		set("status", *req.Status)
	}
	if req.Tags != nil {
		set("tags", *req.Tags)
	}
	if req.FeaturedImage != nil {
		set("featured_image", *req.FeaturedImage)
	}
	if req.Category != nil {
		set("category", *req.Category)
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf(
		`UPDATE contents c SET %s
		 FROM users u
		 WHERE c.id = $1 AND u.id = c.author_id
		 RETURNING `+contentViewColumns,
		strings.Join(sets, ", "),
	)

	var v content.View
	var err error

	err = r.observe("contents.update", func() error {
		v, err = scanContentView(r.pool.QueryRow(ctx, query, args...))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return content.View{}, content.ErrNotFound
		}
		return content.View{}, err
	}

	return v, nil
}

func (r *ContentsRepo) Delete(ctx context.Context, id string) error {
	var tag pgconn.CommandTag
	var err error

	err = r.observe("contents.delete", func() error {
		tag, err = r.pool.Exec(ctx, `DELETE FROM contents WHERE id = $1`, id)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return content.ErrNotFound
	}

	return nil
}

// Publish stamps the publication time and flips the status in one statement.
func (r *ContentsRepo) Publish(ctx context.Context, id string) (content.View, error) {
	return r.setStatus(ctx, "contents.publish", id,
		`UPDATE contents c
		 SET status = 'published', published_at = NOW(), updated_at = NOW()
		 FROM users u
		 WHERE c.id = $1 AND u.id = c.author_id
		 RETURNING `+contentViewColumns)
}

// Unpublish returns an item to draft. published_at keeps its old value,
// matching how the system has always behaved. Unpublishing a draft is a
// no-op beyond the updated_at touch.
func (r *ContentsRepo) Unpublish(ctx context.Context, id string) (content.View, error) {
	return r.setStatus(ctx, "contents.unpublish", id,
		`UPDATE contents c
		 SET status = 'draft', updated_at = NOW()
		 FROM users u
		 WHERE c.id = $1 AND u.id = c.author_id
		 RETURNING `+contentViewColumns)
}

func (r *ContentsRepo) setStatus(ctx context.Context, op, id, query string) (content.View, error) {
	var v content.View
	var err error

	err = r.observe(op, func() error {
		v, err = scanContentView(r.pool.QueryRow(ctx, query, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return content.View{}, content.ErrNotFound
		}
		return content.View{}, err
	}

	return v, nil
}
