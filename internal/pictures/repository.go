package pictures

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica-central/helpdesk/internal/platform/db"
	"github.com/clinica-central/helpdesk/internal/requests"
	"github.com/clinica-central/helpdesk/internal/shared"
)

// Repository exposes picture persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, requestID int64) ([]Picture, error)
	FindByURL(ctx context.Context, requestID int64, url string) (Picture, error)
}

// TxRepository exposes the writes that run together with their audit entry.
// LockRequest holds the parent request row until commit so a concurrent
// transition to a closed status waits for the write.
type TxRepository interface {
	LockRequest(ctx context.Context, requestID int64) (requests.Status, error)
	Insert(ctx context.Context, requestID int64, url string) (Picture, error)
	Delete(ctx context.Context, id int64) error
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

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithLockedTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (r *pgRepository) List(ctx context.Context, requestID int64) ([]Picture, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, request_id, picture_url, date_created
		FROM request_pictures WHERE request_id = $1
		ORDER BY date_created, id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Picture{}
	for rows.Next() {
		var p Picture
		if err := rows.Scan(&p.ID, &p.RequestID, &p.PictureURL, &p.DateCreated); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pgRepository) FindByURL(ctx context.Context, requestID int64, url string) (Picture, error) {
	var p Picture
	err := r.pool.QueryRow(ctx, `
		SELECT id, request_id, picture_url, date_created
		FROM request_pictures WHERE request_id = $1 AND picture_url = $2`, requestID, url).
		Scan(&p.ID, &p.RequestID, &p.PictureURL, &p.DateCreated)
	if errors.Is(err, pgx.ErrNoRows) {
		return Picture{}, shared.NewError(shared.ErrNotFound, "Imagen no encontrada")
	}
	return p, err
}

func (t *txRepo) LockRequest(ctx context.Context, requestID int64) (requests.Status, error) {
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
	status, ok := requests.ParseStatus(name)
	if !ok {
		return "", fmt.Errorf("pictures: unknown stored status %q", name)
	}
	return status, nil
}

func (t *txRepo) Insert(ctx context.Context, requestID int64, url string) (Picture, error) {
	var p Picture
	err := t.tx.QueryRow(ctx, `
		INSERT INTO request_pictures (request_id, picture_url, date_created) VALUES ($1, $2, NOW())
		RETURNING id, request_id, picture_url, date_created`, requestID, url).
		Scan(&p.ID, &p.RequestID, &p.PictureURL, &p.DateCreated)
	return p, err
}

func (t *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM request_pictures WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewError(shared.ErrNotFound, "Imagen no encontrada")
	}
	return nil
}

func (t *txRepo) AppendLog(ctx context.Context, requestID, userID int64, action string) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO request_logs (request_id, user_id, action_done, log_date) VALUES ($1, $2, $3, NOW())`, requestID, userID, action)
	return err
}
