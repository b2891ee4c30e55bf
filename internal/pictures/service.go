package pictures

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/clinica-central/helpdesk/internal/authz"
	"github.com/clinica-central/helpdesk/internal/requests"
	"github.com/clinica-central/helpdesk/internal/shared"
)

// RequestReader loads the parent request of a picture.
type RequestReader interface {
	Get(ctx context.Context, id int64) (requests.Detail, error)
}

// Purger schedules a retry of a file deletion that failed.
type Purger interface {
	EnqueuePicturePurge(ctx context.Context, file string) error
}

// Service attaches and removes request pictures. The database row is the
// source of truth; file deletion is best effort.
type Service struct {
	repo     Repository
	requests RequestReader
	store    FileStore
	purger   Purger
	maxBytes int64
	logger   *slog.Logger
	newName  func(requestID int64, ext string) string
}

// NewService constructs the picture service.
func NewService(repo Repository, reqs RequestReader, store FileStore, maxBytes int64, logger *slog.Logger) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		requests: reqs,
		store:    store,
		maxBytes: maxBytes,
		logger:   logger,
		newName: func(requestID int64, ext string) string {
			return strconv.FormatInt(requestID, 10) + "-" + uuid.NewString() + "." + ext
		},
	}
}

// SetPurger sets the retry queue for failed file deletions.
func (s *Service) SetPurger(p Purger) {
	s.purger = p
}

// MaxBytes is the upload size limit.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

func (s *Service) visible(ctx context.Context, requestID int64, actor authz.Actor) (requests.Detail, error) {
	detail, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return requests.Detail{}, err
	}
	if !actor.CanView(detail.CompanyID, detail.RequesterID) {
		return requests.Detail{}, shared.NewError(shared.ErrForbidden, "Forbidden")
	}
	return detail, nil
}

func (s *Service) writable(ctx context.Context, requestID int64, actor authz.Actor, closedMessage string) error {
	detail, err := s.visible(ctx, requestID, actor)
	if err != nil {
		return err
	}
	status, ok := detail.CurrentStatus()
	if !ok {
		return fmt.Errorf("pictures: unknown status %q on request %d", detail.Status.Name, requestID)
	}
	if status.IsTerminal() {
		return shared.NewError(shared.ErrClosedRequest, closedMessage)
	}
	return nil
}

// stillOpen re-reads the request status under a row lock.
func stillOpen(ctx context.Context, tx TxRepository, requestID int64, closedMessage string) error {
	status, err := tx.LockRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if status.IsTerminal() {
		return shared.NewError(shared.ErrClosedRequest, closedMessage)
	}
	return nil
}

// Attach stores upload and records it on the request.
func (s *Service) Attach(ctx context.Context, requestID int64, upload Upload, actor authz.Actor) (Picture, error) {
	if upload.Body == nil {
		return Picture{}, shared.NewValidationError("No se recibió ningún archivo", map[string]string{"file": "required"})
	}
	if upload.Size > s.maxBytes {
		return Picture{}, shared.NewValidationError("La imagen excede el tamaño máximo permitido", map[string]string{"file": "max"})
	}
	const closed = "No se pueden subir imágenes para solicitudes cerradas"
	if err := s.writable(ctx, requestID, actor, closed); err != nil {
		return Picture{}, err
	}

	ext := Extension(upload.Filename)
	name := s.newName(requestID, ext)
	body := io.LimitReader(upload.Body, s.maxBytes+1)
	if err := s.store.Save(ctx, name, body, upload.Size, ContentType(name)); err != nil {
		return Picture{}, fmt.Errorf("save picture: %w", err)
	}

	var pic Picture
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := stillOpen(ctx, tx, requestID, closed); err != nil {
			return err
		}
		var err error
		if pic, err = tx.Insert(ctx, requestID, PictureURL(requestID, name)); err != nil {
			return fmt.Errorf("insert picture: %w", err)
		}
		return tx.AppendLog(ctx, requestID, actor.UserID, LogAdded)
	})
	if err != nil {
		if rmErr := s.store.Remove(ctx, name); rmErr != nil {
			s.logger.WarnContext(ctx, "remove orphan picture", slog.String("file", name), slog.Any("error", rmErr))
		}
		return Picture{}, err
	}
	s.logger.InfoContext(ctx, "picture attached", slog.Int64("request_id", requestID), slog.String("file", name))
	return pic, nil
}

// Remove deletes the picture row and its audit entry, then the file. A file
// deletion failure is logged and queued for retry, never returned.
func (s *Service) Remove(ctx context.Context, requestID int64, file string, actor authz.Actor) error {
	if !ValidFileName(file) {
		return shared.NewValidationError("Nombre de archivo inválido", map[string]string{"file": "invalid"})
	}
	const closed = "No se pueden eliminar imágenes de solicitudes cerradas"
	if err := s.writable(ctx, requestID, actor, closed); err != nil {
		return err
	}
	pic, err := s.repo.FindByURL(ctx, requestID, PictureURL(requestID, file))
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := stillOpen(ctx, tx, requestID, closed); err != nil {
			return err
		}
		if err := tx.Delete(ctx, pic.ID); err != nil {
			return err
		}
		return tx.AppendLog(ctx, requestID, actor.UserID, LogRemoved)
	})
	if err != nil {
		return err
	}

	if err := s.store.Remove(ctx, file); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.DebugContext(ctx, "picture file already gone", slog.String("file", file))
			return nil
		}
		s.logger.WarnContext(ctx, "delete picture file", slog.String("file", file), slog.Any("error", err))
		if s.purger != nil {
			if qErr := s.purger.EnqueuePicturePurge(ctx, file); qErr != nil {
				s.logger.WarnContext(ctx, "enqueue picture purge", slog.String("file", file), slog.Any("error", qErr))
			}
		}
	}
	return nil
}

// List returns the pictures of a visible request.
func (s *Service) List(ctx context.Context, requestID int64, actor authz.Actor) ([]Picture, error) {
	if _, err := s.visible(ctx, requestID, actor); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, requestID)
}

// Open streams a stored file of a visible request with its content type. The
// file must be recorded against requestID.
func (s *Service) Open(ctx context.Context, requestID int64, file string, actor authz.Actor) (io.ReadCloser, string, error) {
	if !ValidFileName(file) {
		return nil, "", shared.NewError(shared.ErrNotFound, "Imagen no encontrada")
	}
	if _, err := s.visible(ctx, requestID, actor); err != nil {
		return nil, "", err
	}
	if _, err := s.repo.FindByURL(ctx, requestID, PictureURL(requestID, file)); err != nil {
		return nil, "", err
	}
	rc, err := s.store.Open(ctx, file)
	if err != nil {
		return nil, "", err
	}
	return rc, ContentType(file), nil
}

// Purge deletes file from store, treating a missing file as done.
func Purge(ctx context.Context, store FileStore, file string) error {
	if !ValidFileName(file) {
		return fmt.Errorf("pictures: invalid file name %q", file)
	}
	if err := store.Remove(ctx, file); err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	return nil
}
