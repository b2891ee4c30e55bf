package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica-central/helpdesk/internal/authz"
	"github.com/clinica-central/helpdesk/internal/platform/db"
	"github.com/clinica-central/helpdesk/internal/shared"
)

// Repository exposes request persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, scope authz.Scope, filter ListFilter) ([]Summary, error)
	Get(ctx context.Context, id int64) (Detail, error)
	Recipients(ctx context.Context, requestID int64) ([]string, error)
}

// TxRepository exposes the writes that run inside one transaction.
type TxRepository interface {
	LockRequestType(ctx context.Context, typeID int64) (string, error)
	LatestCode(ctx context.Context, typeID int64) (string, error)
	CountByType(ctx context.Context, typeID int64) (int64, error)
	Insert(ctx context.Context, req NewRequest) (int64, error)
	LockStatus(ctx context.Context, requestID int64) (Status, error)
	UpdateStatus(ctx context.Context, requestID, statusID int64) error
	AppendLog(ctx context.Context, requestID, userID int64, action string) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a read-committed transaction; TxRepository locks
// the rows it reads before writing.
func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithLockedTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const summarySelect = `
SELECT r.id, r.request_code, r.subject, r.description, r.location, r.date_requested,
       r.company_id, r.requester_id,
       t.id, t.name, COALESCE(t.code, ''),
       p.id, p.code, p.name,
       pr.id, pr.name, pr.number,
       s.id, s.name,
       u.id, u.email, u.name, u.last_name,
       c.id, c.name, c.slug,
       (SELECT COUNT(*) FROM request_pictures rp WHERE rp.request_id = r.id)
FROM requests r
JOIN request_types t ON t.id = r.request_type_id
JOIN processes p ON p.id = r.process_id
JOIN priorities pr ON pr.id = r.priority_id
JOIN request_statuses s ON s.id = r.request_status_id
JOIN users u ON u.id = r.requester_id
JOIN companies c ON c.id = r.company_id`

func scanSummary(row pgx.Row) (Summary, error) {
	var s Summary
	err := row.Scan(
		&s.ID, &s.RequestCode, &s.Subject, &s.Description, &s.Location, &s.DateRequested,
		&s.CompanyID, &s.RequesterID,
		&s.Type.ID, &s.Type.Name, &s.Type.Code,
		&s.Process.ID, &s.Process.Code, &s.Process.Name,
		&s.Priority.ID, &s.Priority.Name, &s.Priority.Number,
		&s.Status.ID, &s.Status.Name,
		&s.Requester.ID, &s.Requester.Email, &s.Requester.Name, &s.Requester.LastName,
		&s.Company.ID, &s.Company.Name, &s.Company.Slug,
		&s.PictureCount,
	)
	return s, err
}

// scopeClause renders the visibility scope and filters as a WHERE clause.
func scopeClause(scope authz.Scope, filter ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	switch scope.Kind {
	case authz.ScopeAll:
		if filter.Company != "" {
			add("c.slug = $%d", filter.Company)
		}
		if filter.UserID > 0 {
			add("r.requester_id = $%d", filter.UserID)
		}
	case authz.ScopeCompanies:
		add("r.company_id = ANY($%d)", scope.CompanyIDs)
	default:
		add("r.requester_id = $%d", scope.UserID)
	}
	if filter.Status != "" {
		names := []string{filter.Status}
		if st, ok := ParseStatus(filter.Status); ok {
			names = st.StoredNames()
		}
		add("s.name = ANY($%d)", names)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *pgRepository) List(ctx context.Context, scope authz.Scope, filter ListFilter) ([]Summary, error) {
	where, args := scopeClause(scope, filter)
	rows, err := r.pool.Query(ctx, summarySelect+where+" ORDER BY r.date_requested DESC, r.id DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Detail, error) {
	s, err := scanSummary(r.pool.QueryRow(ctx, summarySelect+" WHERE r.id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Detail{}, shared.NewError(shared.ErrNotFound, "Solicitud no encontrada")
		}
		return Detail{}, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.request_id, l.user_id, l.action_done, l.log_date,
		       u.id, u.email, u.name, u.last_name
		FROM request_logs l
		JOIN users u ON u.id = l.user_id
		WHERE l.request_id = $1
		ORDER BY l.log_date DESC, l.id DESC`, id)
	if err != nil {
		return Detail{}, err
	}
	defer rows.Close()
	detail := Detail{Summary: s, Logs: []Log{}}
	for rows.Next() {
		var l Log
		if err := rows.Scan(&l.ID, &l.RequestID, &l.UserID, &l.ActionDone, &l.LogDate,
			&l.User.ID, &l.User.Email, &l.User.Name, &l.User.LastName); err != nil {
			return Detail{}, err
		}
		detail.Logs = append(detail.Logs, l)
	}
	return detail, rows.Err()
}

// Recipients returns the requester and the admins of the request's company.
func (r *pgRepository) Recipients(ctx context.Context, requestID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.email FROM requests r JOIN users u ON u.id = r.requester_id
		WHERE r.id = $1 AND u.is_active
		UNION
		SELECT u.email FROM requests r
		JOIN user_companies uc ON uc.company_id = r.company_id AND uc.is_admin
		JOIN users u ON u.id = uc.user_id
		WHERE r.id = $1 AND u.is_active
		ORDER BY 1`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

func (t *txRepo) LockRequestType(ctx context.Context, typeID int64) (string, error) {
	var code string
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(code, '') FROM request_types WHERE id = $1 FOR UPDATE`, typeID).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrCatalogIncomplete
	}
	return code, err
}

func (t *txRepo) LatestCode(ctx context.Context, typeID int64) (string, error) {
	var code string
	err := t.tx.QueryRow(ctx, `
		SELECT request_code FROM requests
		WHERE request_type_id = $1
		ORDER BY length(request_code) DESC, request_code DESC
		LIMIT 1`, typeID).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return code, err
}

func (t *txRepo) CountByType(ctx context.Context, typeID int64) (int64, error) {
	var n int64
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM requests WHERE request_type_id = $1`, typeID).Scan(&n)
	return n, err
}

func (t *txRepo) Insert(ctx context.Context, req NewRequest) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO requests (request_code, subject, description, location, date_requested,
			company_id, process_id, priority_id, request_type_id, request_status_id, requester_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		req.Code, req.Subject, req.Description, req.Location, req.DateRequested,
		req.CompanyID, req.ProcessID, req.PriorityID, req.RequestTypeID, req.StatusID, req.RequesterID,
	).Scan(&id)
	if err != nil {
		if shared.IsForeignKeyViolation(err) {
			return 0, shared.NewValidationError("Referencia inválida", map[string]string{"processId": "unknown"})
		}
		return 0, err
	}
	return id, nil
}

func (t *txRepo) LockStatus(ctx context.Context, requestID int64) (Status, error) {
	var name string
	err := t.tx.QueryRow(ctx, `
		SELECT s.name FROM requests r
		JOIN request_statuses s ON s.id = r.request_status_id
		WHERE r.id = $1
		FOR UPDATE OF r`, requestID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.NewError(shared.ErrNotFound, "Solicitud no encontrada")
		}
		return "", err
	}
	status, ok := ParseStatus(name)
	if !ok {
		return "", fmt.Errorf("requests: unknown stored status %q", name)
	}
	return status, nil
}

func (t *txRepo) UpdateStatus(ctx context.Context, requestID, statusID int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE requests SET request_status_id = $2 WHERE id = $1`, requestID, statusID)
	return err
}

func (t *txRepo) AppendLog(ctx context.Context, requestID, userID int64, action string) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO request_logs (request_id, user_id, action_done, log_date) VALUES ($1, $2, $3, NOW())`, requestID, userID, action)
	return err
}
