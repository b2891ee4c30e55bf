package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica-central/helpdesk/internal/platform/db"
	"github.com/clinica-central/helpdesk/internal/shared"
)

// RefColumn names the requests column that references a catalog row.
type RefColumn string

const (
	RefProcess     RefColumn = "process_id"
	RefPriority    RefColumn = "priority_id"
	RefRequestType RefColumn = "request_type_id"
)

// Repository exposes catalog persistence. Implementations returned inside
// WithTx share the caller's transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	ListProcesses(ctx context.Context) ([]Process, error)
	GetProcess(ctx context.Context, id int64) (Process, error)
	InsertProcess(ctx context.Context, code, name, description string) (Process, error)
	UpdateProcess(ctx context.Context, id int64, in ProcessInput) (Process, error)
	DeleteProcess(ctx context.Context, id int64) error

	ListPriorities(ctx context.Context) ([]Priority, error)
	PriorityByID(ctx context.Context, id int64) (Priority, error)
	PriorityByName(ctx context.Context, name string) (Priority, error)
	InsertPriority(ctx context.Context, name string, number int) (Priority, error)
	UpdatePriority(ctx context.Context, id int64, in PriorityInput) (Priority, error)
	DeletePriority(ctx context.Context, id int64) error

	ListRequestTypes(ctx context.Context) ([]RequestType, error)
	RequestTypeByID(ctx context.Context, id int64) (RequestType, error)
	RequestTypeByName(ctx context.Context, name string) (RequestType, error)
	InsertRequestType(ctx context.Context, name string, code *string) (RequestType, error)
	UpdateRequestType(ctx context.Context, id int64, name string, code *string) (RequestType, error)
	DeleteRequestType(ctx context.Context, id int64) error

	ListStatuses(ctx context.Context) ([]RequestStatus, error)
	StatusByNames(ctx context.Context, names []string) (RequestStatus, error)

	CountRequests(ctx context.Context, col RefColumn, id int64) (int64, error)

	ListCompanies(ctx context.Context) ([]Company, error)
	GetCompany(ctx context.Context, id int64) (Company, error)
	CompanyBySlug(ctx context.Context, slug string) (Company, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	InsertCompany(ctx context.Context, name, slug, address string) (Company, error)
	UpdateCompany(ctx context.Context, id int64, name, address *string) (Company, error)
	DeleteCompany(ctx context.Context, id int64) error
	InsertCompanyAdmin(ctx context.Context, companyID int64, in CompanyUserInput, passwordHash string, isAdmin bool) (int64, error)

	ListCompanyProcesses(ctx context.Context, companyID int64) ([]CompanyProcess, error)
	GetCompanyProcess(ctx context.Context, companyID, processID int64) (CompanyProcess, error)
	LinkProcess(ctx context.Context, companyID, processID int64) error
	SetProcessEnabled(ctx context.Context, companyID, processID int64, enabled bool) error
	UnlinkProcess(ctx context.Context, companyID, processID int64) error
	CountCompanyProcessRequests(ctx context.Context, companyID, processID int64) (int64, error)
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

// WithTx wraps callback in repeatable-read transaction.
func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgRepository{q: tx})
	})
}

func notFound(err error, message string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.NewError(shared.ErrNotFound, message)
	}
	return err
}

func conflict(err error, message string) error {
	if shared.IsUniqueViolation(err) {
		return shared.NewError(shared.ErrConflict, message)
	}
	return err
}

func collect[T any](rows pgx.Rows, scan func(pgx.Rows) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func expectAffected(tag pgconn.CommandTag, message string) error {
	if tag.RowsAffected() == 0 {
		return shared.NewError(shared.ErrNotFound, message)
	}
	return nil
}

// Processes

const processSelect = `
SELECT p.id, p.code, p.name, p.description,
       (SELECT COUNT(*) FROM requests r WHERE r.process_id = p.id)
FROM processes p`

func scanProcess(row pgx.Row) (Process, error) {
	var p Process
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.RequestCount)
	return p, err
}

func (r *pgRepository) ListProcesses(ctx context.Context) ([]Process, error) {
	rows, err := r.q.Query(ctx, processSelect+" ORDER BY p.code")
	if err != nil {
		return nil, err
	}
	return collect(rows, func(rows pgx.Rows) (Process, error) { return scanProcess(rows) })
}

func (r *pgRepository) GetProcess(ctx context.Context, id int64) (Process, error) {
	p, err := scanProcess(r.q.QueryRow(ctx, processSelect+" WHERE p.id = $1", id))
	return p, notFound(err, "Proceso no encontrado")
}

func (r *pgRepository) InsertProcess(ctx context.Context, code, name, description string) (Process, error) {
	var p Process
	err := r.q.QueryRow(ctx, `INSERT INTO processes (code, name, description) VALUES ($1, $2, $3) RETURNING id, code, name, description`,
		code, name, description).Scan(&p.ID, &p.Code, &p.Name, &p.Description)
	return p, conflict(err, "Ya existe un proceso con ese código")
}

func (r *pgRepository) UpdateProcess(ctx context.Context, id int64, in ProcessInput) (Process, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE processes SET
			code = COALESCE($2, code),
			name = COALESCE($3, name),
			description = COALESCE($4, description)
		WHERE id = $1`, id, in.Code, in.Name, in.Description)
	if err != nil {
		return Process{}, conflict(err, "Ya existe un proceso con ese código")
	}
	if err := expectAffected(tag, "Proceso no encontrado"); err != nil {
		return Process{}, err
	}
	return r.GetProcess(ctx, id)
}

func (r *pgRepository) DeleteProcess(ctx context.Context, id int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM company_processes WHERE process_id = $1`, id); err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx, `DELETE FROM processes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(tag, "Proceso no encontrado")
}

// Priorities

const prioritySelect = `
SELECT p.id, p.name, p.number,
       (SELECT COUNT(*) FROM requests r WHERE r.priority_id = p.id)
FROM priorities p`

func scanPriority(row pgx.Row) (Priority, error) {
	var p Priority
	err := row.Scan(&p.ID, &p.Name, &p.Number, &p.RequestCount)
	return p, err
}

func (r *pgRepository) ListPriorities(ctx context.Context) ([]Priority, error) {
	rows, err := r.q.Query(ctx, prioritySelect+" ORDER BY p.number, p.id")
	if err != nil {
		return nil, err
	}
	return collect(rows, func(rows pgx.Rows) (Priority, error) { return scanPriority(rows) })
}

func (r *pgRepository) PriorityByID(ctx context.Context, id int64) (Priority, error) {
	p, err := scanPriority(r.q.QueryRow(ctx, prioritySelect+" WHERE p.id = $1", id))
	return p, notFound(err, "Prioridad no encontrada")
}

func (r *pgRepository) PriorityByName(ctx context.Context, name string) (Priority, error) {
	p, err := scanPriority(r.q.QueryRow(ctx, prioritySelect+" WHERE p.name = $1", name))
	return p, notFound(err, "Prioridad no encontrada")
}

func (r *pgRepository) InsertPriority(ctx context.Context, name string, number int) (Priority, error) {
	var p Priority
	err := r.q.QueryRow(ctx, `INSERT INTO priorities (name, number) VALUES ($1, $2) RETURNING id, name, number`,
		name, number).Scan(&p.ID, &p.Name, &p.Number)
	return p, conflict(err, "Ya existe una prioridad con ese nombre")
}

func (r *pgRepository) UpdatePriority(ctx context.Context, id int64, in PriorityInput) (Priority, error) {
	tag, err := r.q.Exec(ctx, `UPDATE priorities SET name = COALESCE($2, name), number = COALESCE($3, number) WHERE id = $1`,
		id, in.Name, in.Number)
	if err != nil {
		return Priority{}, conflict(err, "Ya existe una prioridad con ese nombre")
	}
	if err := expectAffected(tag, "Prioridad no encontrada"); err != nil {
		return Priority{}, err
	}
	return r.PriorityByID(ctx, id)
}

func (r *pgRepository) DeletePriority(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM priorities WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(tag, "Prioridad no encontrada")
}

// Request types

const requestTypeSelect = `
SELECT t.id, t.name, COALESCE(t.code, ''),
       (SELECT COUNT(*) FROM requests r WHERE r.request_type_id = t.id)
FROM request_types t`

func scanRequestType(row pgx.Row) (RequestType, error) {
	var t RequestType
	err := row.Scan(&t.ID, &t.Name, &t.Code, &t.RequestCount)
	return t, err
}

func (r *pgRepository) ListRequestTypes(ctx context.Context) ([]RequestType, error) {
	rows, err := r.q.Query(ctx, requestTypeSelect+" ORDER BY t.id")
	if err != nil {
		return nil, err
	}
	return collect(rows, func(rows pgx.Rows) (RequestType, error) { return scanRequestType(rows) })
}

func (r *pgRepository) RequestTypeByID(ctx context.Context, id int64) (RequestType, error) {
	t, err := scanRequestType(r.q.QueryRow(ctx, requestTypeSelect+" WHERE t.id = $1", id))
	return t, notFound(err, "Tipo de solicitud no encontrado")
}

func (r *pgRepository) RequestTypeByName(ctx context.Context, name string) (RequestType, error) {
	t, err := scanRequestType(r.q.QueryRow(ctx, requestTypeSelect+" WHERE t.name = $1", name))
	return t, notFound(err, "Tipo de solicitud no encontrado")
}

func (r *pgRepository) InsertRequestType(ctx context.Context, name string, code *string) (RequestType, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO request_types (name, code) VALUES ($1, $2) RETURNING id`, name, code).Scan(&id)
	if err != nil {
		return RequestType{}, conflict(err, "Ya existe un tipo de solicitud con ese nombre")
	}
	return r.RequestTypeByID(ctx, id)
}

func (r *pgRepository) UpdateRequestType(ctx context.Context, id int64, name string, code *string) (RequestType, error) {
	tag, err := r.q.Exec(ctx, `UPDATE request_types SET name = $2, code = COALESCE($3, code) WHERE id = $1`, id, name, code)
	if err != nil {
		return RequestType{}, conflict(err, "Ya existe un tipo de solicitud con ese nombre")
	}
	if err := expectAffected(tag, "Tipo de solicitud no encontrado"); err != nil {
		return RequestType{}, err
	}
	return r.RequestTypeByID(ctx, id)
}

func (r *pgRepository) DeleteRequestType(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM request_types WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(tag, "Tipo de solicitud no encontrado")
}

// Statuses

func (r *pgRepository) ListStatuses(ctx context.Context) ([]RequestStatus, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name FROM request_statuses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(rows pgx.Rows) (RequestStatus, error) {
		var s RequestStatus
		err := rows.Scan(&s.ID, &s.Name)
		return s, err
	})
}

// StatusByNames returns the first status matching names, in the given order.
func (r *pgRepository) StatusByNames(ctx context.Context, names []string) (RequestStatus, error) {
	var s RequestStatus
	err := r.q.QueryRow(ctx, `
		SELECT id, name FROM request_statuses
		WHERE name = ANY($1)
		ORDER BY array_position($1, name)
		LIMIT 1`, names).Scan(&s.ID, &s.Name)
	return s, notFound(err, "Estado no encontrado")
}

func (r *pgRepository) CountRequests(ctx context.Context, col RefColumn, id int64) (int64, error) {
	switch col {
	case RefProcess, RefPriority, RefRequestType:
	default:
		return 0, fmt.Errorf("catalog: unknown reference column %q", col)
	}
	var n int64
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM requests WHERE `+string(col)+` = $1`, id).Scan(&n)
	return n, err
}

// Companies

const companySelect = `SELECT id, name, slug, address, created_at FROM companies`

func scanCompany(row pgx.Row) (Company, error) {
	var c Company
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Address, &c.CreatedAt)
	return c, err
}

func (r *pgRepository) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := r.q.Query(ctx, companySelect+" ORDER BY id")
	if err != nil {
		return nil, err
	}
	companies, err := collect(rows, func(rows pgx.Rows) (Company, error) { return scanCompany(rows) })
	if err != nil {
		return nil, err
	}
	members, err := r.members(ctx)
	if err != nil {
		return nil, err
	}
	for i := range companies {
		companies[i].Members = members[companies[i].ID]
	}
	return companies, nil
}

func (r *pgRepository) members(ctx context.Context) (map[int64][]Member, error) {
	rows, err := r.q.Query(ctx, `
		SELECT uc.company_id, u.id, u.email, u.name, u.last_name, ro.name, uc.is_admin
		FROM user_companies uc
		JOIN users u ON u.id = uc.user_id
		JOIN roles ro ON ro.id = u.role_id
		ORDER BY uc.company_id, u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int64][]Member{}
	for rows.Next() {
		var (
			companyID int64
			m         Member
		)
		if err := rows.Scan(&companyID, &m.UserID, &m.Email, &m.Name, &m.LastName, &m.Role, &m.IsAdmin); err != nil {
			return nil, err
		}
		out[companyID] = append(out[companyID], m)
	}
	return out, rows.Err()
}

func (r *pgRepository) GetCompany(ctx context.Context, id int64) (Company, error) {
	c, err := scanCompany(r.q.QueryRow(ctx, companySelect+" WHERE id = $1", id))
	return c, notFound(err, "Empresa no encontrada")
}

func (r *pgRepository) CompanyBySlug(ctx context.Context, slug string) (Company, error) {
	c, err := scanCompany(r.q.QueryRow(ctx, companySelect+" WHERE slug = $1", slug))
	return c, notFound(err, "Empresa no encontrada")
}

func (r *pgRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM companies WHERE slug = $1)`, slug).Scan(&exists)
	return exists, err
}

func (r *pgRepository) InsertCompany(ctx context.Context, name, slug, address string) (Company, error) {
	c, err := scanCompany(r.q.QueryRow(ctx, `
		INSERT INTO companies (name, slug, address) VALUES ($1, $2, $3)
		RETURNING id, name, slug, address, created_at`, name, slug, address))
	return c, conflict(err, "Ya existe una empresa con ese identificador")
}

func (r *pgRepository) UpdateCompany(ctx context.Context, id int64, name, address *string) (Company, error) {
	c, err := scanCompany(r.q.QueryRow(ctx, `
		UPDATE companies SET name = COALESCE($2, name), address = COALESCE($3, address), updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, slug, address, created_at`, id, name, address))
	return c, notFound(err, "Empresa no encontrada")
}

func (r *pgRepository) DeleteCompany(ctx context.Context, id int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM user_companies WHERE company_id = $1`, id); err != nil {
		return err
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM company_processes WHERE company_id = $1`, id); err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		if shared.IsForeignKeyViolation(err) {
			return shared.NewError(shared.ErrConflict, "La empresa tiene solicitudes registradas")
		}
		return err
	}
	return expectAffected(tag, "Empresa no encontrada")
}

func (r *pgRepository) InsertCompanyAdmin(ctx context.Context, companyID int64, in CompanyUserInput, passwordHash string, isAdmin bool) (int64, error) {
	var userID int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO users (email, name, last_name, password_hash, role_id)
		SELECT $1, $2, $3, $4, id FROM roles WHERE name = $5
		RETURNING id`, in.Email, in.Name, in.LastName, passwordHash, shared.RoleNameCompanyAdministrator).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.NewValidationError("Role not found", map[string]string{"roleName": shared.RoleNameCompanyAdministrator})
		}
		return 0, conflict(err, "El correo ya está registrado")
	}
	_, err = r.q.Exec(ctx, `INSERT INTO user_companies (user_id, company_id, is_admin) VALUES ($1, $2, $3)`, userID, companyID, isAdmin)
	return userID, err
}

// Company processes

const companyProcessSelect = `
SELECT cp.company_id, cp.process_id, cp.is_enabled, p.id, p.code, p.name, p.description
FROM company_processes cp
JOIN processes p ON p.id = cp.process_id`

func scanCompanyProcess(row pgx.Row) (CompanyProcess, error) {
	var cp CompanyProcess
	err := row.Scan(&cp.CompanyID, &cp.ProcessID, &cp.IsEnabled, &cp.Process.ID, &cp.Process.Code, &cp.Process.Name, &cp.Process.Description)
	return cp, err
}

func (r *pgRepository) ListCompanyProcesses(ctx context.Context, companyID int64) ([]CompanyProcess, error) {
	rows, err := r.q.Query(ctx, companyProcessSelect+" WHERE cp.company_id = $1 ORDER BY p.code", companyID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(rows pgx.Rows) (CompanyProcess, error) { return scanCompanyProcess(rows) })
}

func (r *pgRepository) GetCompanyProcess(ctx context.Context, companyID, processID int64) (CompanyProcess, error) {
	cp, err := scanCompanyProcess(r.q.QueryRow(ctx, companyProcessSelect+" WHERE cp.company_id = $1 AND cp.process_id = $2", companyID, processID))
	return cp, notFound(err, "Proceso no vinculado a la empresa")
}

func (r *pgRepository) LinkProcess(ctx context.Context, companyID, processID int64) error {
	_, err := r.q.Exec(ctx, `INSERT INTO company_processes (company_id, process_id, is_enabled) VALUES ($1, $2, TRUE)`, companyID, processID)
	if shared.IsUniqueViolation(err) {
		return shared.NewValidationError("Process already linked to company", nil)
	}
	return err
}

func (r *pgRepository) SetProcessEnabled(ctx context.Context, companyID, processID int64, enabled bool) error {
	tag, err := r.q.Exec(ctx, `UPDATE company_processes SET is_enabled = $3 WHERE company_id = $1 AND process_id = $2`, companyID, processID, enabled)
	if err != nil {
		return err
	}
	return expectAffected(tag, "Proceso no vinculado a la empresa")
}

func (r *pgRepository) UnlinkProcess(ctx context.Context, companyID, processID int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM company_processes WHERE company_id = $1 AND process_id = $2`, companyID, processID)
	if err != nil {
		return err
	}
	return expectAffected(tag, "Proceso no vinculado a la empresa")
}

func (r *pgRepository) CountCompanyProcessRequests(ctx context.Context, companyID, processID int64) (int64, error) {
	var n int64
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM requests WHERE company_id = $1 AND process_id = $2`, companyID, processID).Scan(&n)
	return n, err
}
