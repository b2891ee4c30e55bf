package requests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/clinica-central/helpdesk/internal/authz"
	"github.com/clinica-central/helpdesk/internal/catalog"
	"github.com/clinica-central/helpdesk/internal/shared"
)

// Catalog resolves the reference rows a request points at.
type Catalog interface {
	RequestType(ctx context.Context, id int64, name string) (catalog.RequestType, error)
	Priority(ctx context.Context, id int64, name string) (catalog.Priority, error)
	Status(ctx context.Context, names ...string) (catalog.RequestStatus, error)
	CompanyBySlug(ctx context.Context, slug string) (catalog.Company, error)
}

// Notifier delivers request events to interested users.
type Notifier interface {
	NotifyRequest(ctx context.Context, n Notification) error
}

// Recorder observes committed lifecycle events.
type Recorder interface {
	ObserveCreated(typeCode string)
	ObserveTransition(from, to string)
}

// Service provides the request lifecycle.
type Service struct {
	repo     Repository
	catalog  Catalog
	notifier Notifier
	metrics  Recorder
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the lifecycle service.
func NewService(repo Repository, cat Catalog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		catalog:  cat,
		validate: shared.NewValidator(),
		logger:   logger,
		now:      time.Now,
	}
}

// SetNotifier sets the notifier used after create and transition.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetMetrics sets the lifecycle recorder.
func (s *Service) SetMetrics(m Recorder) {
	s.metrics = m
}

func (s *Service) catalogIncomplete(ctx context.Context, what string, err error) error {
	s.logger.WarnContext(ctx, "request catalog incomplete", slog.String("missing", what), slog.Any("error", err))
	return shared.NewError(shared.ErrCatalogIncomplete, "Catálogo de tipos, prioridad o estado incompleto")
}

// Create files a new request in status Pending.
func (s *Service) Create(ctx context.Context, input CreateInput, actor authz.Actor) (Detail, error) {
	input.normalize()
	if err := shared.ValidateStruct(s.validate, input, "Faltan campos requeridos"); err != nil {
		return Detail{}, err
	}

	reqType, err := s.catalog.RequestType(ctx, input.RequestTypeID, input.RequestTypeName)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Detail{}, s.catalogIncomplete(ctx, "request_type", err)
		}
		return Detail{}, fmt.Errorf("resolve request type: %w", err)
	}
	priority, err := s.catalog.Priority(ctx, input.PriorityID, input.PriorityName)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Detail{}, s.catalogIncomplete(ctx, "priority", err)
		}
		return Detail{}, fmt.Errorf("resolve priority: %w", err)
	}
	pending, err := s.catalog.Status(ctx, StatusPending.StoredNames()...)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Detail{}, s.catalogIncomplete(ctx, "status", err)
		}
		return Detail{}, fmt.Errorf("resolve status: %w", err)
	}
	if strings.TrimSpace(reqType.Code) == "" {
		s.logger.WarnContext(ctx, "request type without code", slog.Int64("request_type_id", reqType.ID))
		return Detail{}, shared.NewError(shared.ErrCatalogIncomplete, "El tipo de solicitud no tiene código asignado")
	}

	companyID, err := s.resolveCompany(ctx, input.CompanySlug, actor)
	if err != nil {
		return Detail{}, err
	}

	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		prefix, err := tx.LockRequestType(ctx, reqType.ID)
		if err != nil {
			return fmt.Errorf("lock request type: %w", err)
		}
		if prefix == "" {
			prefix = reqType.Code
		}
		latest, err := tx.LatestCode(ctx, reqType.ID)
		if err != nil {
			return fmt.Errorf("latest code: %w", err)
		}
		var count int64
		if _, ok := ParseSequence(latest); !ok {
			if count, err = tx.CountByType(ctx, reqType.ID); err != nil {
				return fmt.Errorf("count requests: %w", err)
			}
		}
		id, err = tx.Insert(ctx, NewRequest{
			Code:          NextCode(prefix, latest, count),
			Subject:       input.Subject,
			Description:   input.Description,
			Location:      input.Location,
			DateRequested: s.now(),
			CompanyID:     companyID,
			ProcessID:     input.ProcessID,
			PriorityID:    priority.ID,
			RequestTypeID: reqType.ID,
			StatusID:      pending.ID,
			RequesterID:   actor.UserID,
		})
		if err != nil {
			return fmt.Errorf("insert request: %w", err)
		}
		return tx.AppendLog(ctx, id, actor.UserID, LogCreated)
	})
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return Detail{}, shared.NewError(shared.ErrConflict, "Código de solicitud duplicado, intente nuevamente")
		}
		return Detail{}, err
	}

	detail, err := s.repo.Get(ctx, id)
	if err != nil {
		return Detail{}, fmt.Errorf("reload request: %w", err)
	}
	s.logger.InfoContext(ctx, "request created", slog.Int64("request_id", id), slog.String("code", detail.RequestCode))
	if s.metrics != nil {
		s.metrics.ObserveCreated(reqType.Code)
	}
	s.notify(ctx, detail, actor)
	return detail, nil
}

func (s *Service) resolveCompany(ctx context.Context, slug string, actor authz.Actor) (int64, error) {
	if slug != "" {
		company, err := s.catalog.CompanyBySlug(ctx, slug)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return 0, shared.NewValidationError("Empresa no encontrada", map[string]string{"companySlug": "unknown"})
			}
			return 0, fmt.Errorf("resolve company: %w", err)
		}
		if !actor.CanFileFor(company.ID) {
			return 0, shared.NewError(shared.ErrForbidden, "No pertenece a la empresa indicada")
		}
		return company.ID, nil
	}
	companyID, ok := actor.FirstCompanyID()
	if !ok {
		s.logger.WarnContext(ctx, "requester without company", slog.Int64("user_id", actor.UserID))
		return 0, shared.NewError(shared.ErrNoCompany, "No se encontró una empresa asociada al usuario")
	}
	return companyID, nil
}

// Transition moves a request to statusName, recording one audit entry.
func (s *Service) Transition(ctx context.Context, id int64, input TransitionInput, actor authz.Actor) (Detail, error) {
	name := strings.TrimSpace(input.StatusName)
	comment := strings.TrimSpace(input.Comment)
	if name == "" {
		return Detail{}, shared.NewValidationError("statusName is required", map[string]string{"statusName": "required"})
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if !actor.CanTransition(current.CompanyID) {
		return Detail{}, shared.NewError(shared.ErrForbidden, "Forbidden")
	}
	target, ok := ParseStatus(name)
	if !ok {
		return Detail{}, shared.NewError(shared.ErrInvalidTransition, "Invalid status")
	}
	if target.RequiresComment() && comment == "" {
		return Detail{}, shared.NewError(shared.ErrMissingComment, "Comment is required for this status")
	}
	row, err := s.catalog.Status(ctx, target.StoredNames()...)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Detail{}, s.catalogIncomplete(ctx, "status", err)
		}
		return Detail{}, fmt.Errorf("resolve status: %w", err)
	}

	var from Status
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.LockStatus(ctx, id)
		if err != nil {
			return err
		}
		from = locked
		if err := ValidateTransition(locked, target, comment); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, id, row.ID); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		return tx.AppendLog(ctx, id, actor.UserID, TransitionLog(target, comment))
	})
	if err != nil {
		return Detail{}, err
	}
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(from), string(target))
	}

	detail, err := s.repo.Get(ctx, id)
	if err != nil {
		return Detail{}, fmt.Errorf("reload request: %w", err)
	}
	s.logger.InfoContext(ctx, "request status changed",
		slog.Int64("request_id", id), slog.String("from", string(from)), slog.String("to", string(target)))
	s.notify(ctx, detail, actor)
	return detail, nil
}

// List returns the requests inside the actor's scope, newest first.
func (s *Service) List(ctx context.Context, actor authz.Actor, filter ListFilter) ([]Summary, error) {
	rows, err := s.repo.List(ctx, actor.Scope(), filter)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	if rows == nil {
		rows = []Summary{}
	}
	return rows, nil
}

// Get returns one request with its audit trail.
func (s *Service) Get(ctx context.Context, id int64, actor authz.Actor) (Detail, error) {
	detail, err := s.repo.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if !actor.CanView(detail.CompanyID, detail.RequesterID) {
		return Detail{}, shared.NewError(shared.ErrForbidden, "Forbidden")
	}
	return detail, nil
}

func (s *Service) notify(ctx context.Context, detail Detail, actor authz.Actor) {
	if s.notifier == nil {
		return
	}
	to, err := s.repo.Recipients(ctx, detail.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "notification recipients", slog.Int64("request_id", detail.ID), slog.Any("error", err))
		return
	}
	n := Notification{
		RequestID: detail.ID,
		Code:      detail.RequestCode,
		Subject:   detail.Subject,
		Status:    detail.Status.Name,
		ActorID:   actor.UserID,
		To:        to,
	}
	if err := s.notifier.NotifyRequest(ctx, n); err != nil {
		s.logger.WarnContext(ctx, "enqueue request notification", slog.Int64("request_id", detail.ID), slog.Any("error", err))
	}
}
