package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica-central/helpdesk/internal/authz"
	"github.com/clinica-central/helpdesk/internal/platform/db"
	"github.com/clinica-central/helpdesk/internal/shared"
)

// Repository exposes user persistence. Implementations returned inside
// WithTx share the caller's transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]User, int, error)
	Get(ctx context.Context, id int64) (User, error)
	RoleID(ctx context.Context, name string) (int64, error)
	CompanyID(ctx context.Context, slug string) (int64, error)
	Insert(ctx context.Context, rec Record) (int64, error)
	Update(ctx context.Context, id int64, rec Record) error
	ReplaceMembership(ctx context.Context, userID, companyID int64, isAdmin bool) error
	Delete(ctx context.Context, id int64) error
	Actor(ctx context.Context, id int64) (authz.Actor, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgRepository struct {
	pool *pgxpool.Pool
	q    querier
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool, q: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgRepository{q: tx})
	})
}

const userNotFound = "Usuario no encontrado"

// filterClause builds the WHERE clause shared by the count and page queries.
func filterClause(f ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(u.email ILIKE $%d OR u.name ILIKE $%d OR u.last_name ILIKE $%d)", n, n, n))
	}
	if f.Role != "" {
		args = append(args, f.Role)
		conds = append(conds, fmt.Sprintf("ro.name = $%d", len(args)))
	}
	if f.Company != "" {
		args = append(args, f.Company)
		conds = append(conds, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM user_companies fc JOIN companies c ON c.id = fc.company_id
			WHERE fc.user_id = u.id AND c.slug = $%d)`, len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const userSelect = `
SELECT u.id, u.email, u.name, u.last_name, ro.name, u.is_active, u.created_at
FROM users u
JOIN roles ro ON ro.id = u.role_id`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.LastName, &u.Role, &u.IsActive, &u.CreatedAt)
	return u, err
}

func (r *pgRepository) List(ctx context.Context, filter ListFilter, limit, offset int) ([]User, int, error) {
	where, args := filterClause(filter)

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM users u JOIN roles ro ON ro.id = u.role_id`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf("%s%s ORDER BY u.id LIMIT $%d OFFSET $%d", userSelect, where, len(args)-1, len(args))
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	users := []User{}
	ids := []int64{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		u.Companies = []Membership{}
		users = append(users, u)
		ids = append(ids, u.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	memberships, err := r.memberships(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range users {
		if m, ok := memberships[users[i].ID]; ok {
			users[i].Companies = m
		}
	}
	return users, total, nil
}

func (r *pgRepository) memberships(ctx context.Context, userIDs []int64) (map[int64][]Membership, error) {
	out := map[int64][]Membership{}
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := r.q.Query(ctx, `
		SELECT uc.user_id, c.id, c.name, c.slug, uc.is_admin
		FROM user_companies uc
		JOIN companies c ON c.id = uc.company_id
		WHERE uc.user_id = ANY($1)
		ORDER BY uc.user_id, c.id`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			userID int64
			m      Membership
		)
		if err := rows.Scan(&userID, &m.CompanyID, &m.Name, &m.Slug, &m.IsAdmin); err != nil {
			return nil, err
		}
		out[userID] = append(out[userID], m)
	}
	return out, rows.Err()
}

func (r *pgRepository) Get(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.q.QueryRow(ctx, userSelect+" WHERE u.id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.NewError(shared.ErrNotFound, userNotFound)
		}
		return User{}, err
	}
	memberships, err := r.memberships(ctx, []int64{id})
	if err != nil {
		return User{}, err
	}
	u.Companies = memberships[id]
	if u.Companies == nil {
		u.Companies = []Membership{}
	}
	return u, nil
}

func (r *pgRepository) RoleID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `SELECT id FROM roles WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.NewValidationError("Role not found", map[string]string{"roleName": name})
	}
	return id, err
}

func (r *pgRepository) CompanyID(ctx context.Context, slug string) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `SELECT id FROM companies WHERE slug = $1`, slug).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.NewValidationError("Company not found", map[string]string{"companySlug": slug})
	}
	return id, err
}

func (r *pgRepository) Insert(ctx context.Context, rec Record) (int64, error) {
	active := true
	if rec.IsActive != nil {
		active = *rec.IsActive
	}
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO users (email, name, last_name, password_hash, role_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`, rec.Email, rec.Name, rec.LastName, rec.PasswordHash, rec.RoleID, active).Scan(&id)
	if shared.IsUniqueViolation(err) {
		return 0, shared.NewError(shared.ErrConflict, "El correo ya está registrado")
	}
	return id, err
}

func (r *pgRepository) Update(ctx context.Context, id int64, rec Record) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE users SET
			email = COALESCE(NULLIF($2, ''), email),
			name = COALESCE(NULLIF($3, ''), name),
			last_name = COALESCE(NULLIF($4, ''), last_name),
			password_hash = COALESCE(NULLIF($5, ''), password_hash),
			role_id = COALESCE(NULLIF($6, 0), role_id),
			is_active = COALESCE($7, is_active),
			updated_at = NOW()
		WHERE id = $1`, id, rec.Email, rec.Name, rec.LastName, rec.PasswordHash, rec.RoleID, rec.IsActive)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return shared.NewError(shared.ErrConflict, "El correo ya está registrado")
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewError(shared.ErrNotFound, userNotFound)
	}
	return nil
}

func (r *pgRepository) ReplaceMembership(ctx context.Context, userID, companyID int64, isAdmin bool) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM user_companies WHERE user_id = $1`, userID); err != nil {
		return err
	}
	_, err := r.q.Exec(ctx, `INSERT INTO user_companies (user_id, company_id, is_admin) VALUES ($1, $2, $3)`, userID, companyID, isAdmin)
	return err
}

func (r *pgRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM user_companies WHERE user_id = $1`, id); err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if shared.IsForeignKeyViolation(err) {
			return shared.NewError(shared.ErrConflict, "El usuario tiene solicitudes registradas")
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewError(shared.ErrNotFound, userNotFound)
	}
	return nil
}

// Actor loads the stored role and memberships of an active user.
func (r *pgRepository) Actor(ctx context.Context, id int64) (authz.Actor, error) {
	var (
		actor    authz.Actor
		roleName string
		active   bool
	)
	err := r.q.QueryRow(ctx, `
		SELECT u.id, u.email, ro.name, u.is_active
		FROM users u JOIN roles ro ON ro.id = u.role_id
		WHERE u.id = $1`, id).Scan(&actor.UserID, &actor.Email, &roleName, &active)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && !active) {
		return authz.Actor{}, shared.NewError(shared.ErrNotFound, userNotFound)
	}
	if err != nil {
		return authz.Actor{}, err
	}
	actor.Role = shared.ParseRole(roleName)

	rows, err := r.q.Query(ctx, `SELECT company_id, is_admin FROM user_companies WHERE user_id = $1 ORDER BY company_id`, id)
	if err != nil {
		return authz.Actor{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var m authz.Membership
		if err := rows.Scan(&m.CompanyID, &m.IsAdmin); err != nil {
			return authz.Actor{}, err
		}
		actor.Memberships = append(actor.Memberships, m)
	}
	return actor, rows.Err()
}
