package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/contenthub/internal/domain/user"
	"github.com/geocoder89/contenthub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, name, email, password_hash, role, active, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Active,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (r *UsersRepo) Create(ctx context.Context, name, email, passwordHash, role string, active bool) (user.User, error) {
	now := time.Now().UTC()

	var u user.User
	var err error

	err = r.observe("users.create", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`INSERT INTO users (id, name, email, password_hash, role, active, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			 RETURNING `+userColumns,
			uuid.NewString(), name, email, passwordHash, role, active, now, now,
		))
		return err
	})

	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	var err error

	err = r.observe("users.get_by_email", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User
	var err error

	err = r.observe("users.get_by_id", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) List(ctx context.Context, f user.ListFilter) ([]user.User, int, error) {
	baseQuery := `SELECT ` + userColumns + `, COUNT(*) OVER() AS total FROM users`

	var conds []string
	var args []interface{}

	argsPosition := 1

	if f.Role != nil {
		conds = append(conds, fmt.Sprintf("role = $%d", argsPosition))
		args = append(args, *f.Role)
		argsPosition++
	}

	if f.Active != nil {
		conds = append(conds, fmt.Sprintf("active = $%d", argsPosition))
		args = append(args, *f.Active)
		argsPosition++
	}

	// substring match on name or email
	if f.Search != nil {
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", argsPosition, argsPosition))
		args = append(args, "%"+*f.Search+"%")
		argsPosition++
	}

	query := baseQuery

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	order := orderClause(f.Sort, userSortColumns, "id", "created_at DESC, id DESC")

	query += fmt.Sprintf(" ORDER BY %s LIMIT $%d OFFSET $%d", order, argsPosition, argsPosition+1)
	args = append(args, f.Limit, f.Offset)

	var rows pgx.Rows

	err := r.observe("users.list", func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, query, args...)
		return qerr
	})

	if err != nil {
		return nil, 0, err
	}

	defer rows.Close()

	output := make([]user.User, 0, f.Limit)
	total := 0

	for rows.Next() {
		var u user.User
		var t int

		err = rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt, &t)

		if err != nil {
			return nil, 0, err
		}

		total = t
		output = append(output, u)
	}

	err = rows.Err()

	if err != nil {
		return nil, 0, err
	}

	return output, total, nil
}

func (r *UsersRepo) Update(ctx context.Context, id string, changes user.Changes) (user.User, error) {
	var sets []string
	var args []interface{}

	args = append(args, id)
	argsPosition := 2

	set := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, argsPosition))
		args = append(args, val)
		argsPosition++
	}

	if changes.Name != nil {
		set("name", *changes.Name)
	}
	if changes.Email != nil {
		set("email", *changes.Email)
	}
	if changes.Role != nil {
		set("role", *changes.Role)
	}
	if changes.Active != nil {
		set("active", *changes.Active)
	}

	if len(sets) == 0 {
		// nothing to change; behave like a read
		return r.GetByID(ctx, id)
	}

	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $1 RETURNING `+userColumns,
		strings.Join(sets, ", "),
	)

	var u user.User
	var err error

	err = r.observe("users.update", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx, query, args...))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	var tag pgconn.CommandTag
	var err error

	err = r.observe("users.update_password", func() error {
		tag, err = r.pool.Exec(ctx,
			`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
			id, passwordHash,
		)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}

	return nil
}

func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	var tag pgconn.CommandTag
	var err error

	err = r.observe("users.delete", func() error {
		tag, err = r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		return err
	})

	if err != nil {
		return err
	}

	// if no rows were deleted as a result return a not found error
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
