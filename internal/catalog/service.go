package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/clinica-central/helpdesk/internal/shared"
)

const (
	msgInUse         = "No se puede eliminar, está en uso por solicitudes"
	msgDisableInUse  = "No se puede deshabilitar, tiene solicitudes"
	msgNothingUpdate = "Nothing to update"
)

// Service manages catalog entities. Every write invalidates the lookup cache.
type Service struct {
	repo     Repository
	lookup   *Lookup
	validate *validator.Validate
	hash     func(password string) (string, error)
	logger   *slog.Logger
}

// NewService constructs the catalog service.
func NewService(repo Repository, lookup *Lookup, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		lookup:   lookup,
		validate: shared.NewValidator(),
		hash:     hashPassword,
		logger:   logger,
	}
}

func hashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}

func blank(p *string) bool {
	return p == nil || strings.TrimSpace(*p) == ""
}

// guardedDelete counts referencing requests and deletes only when none exist.
func (s *Service) guardedDelete(ctx context.Context, col RefColumn, id int64, del func(context.Context, Repository) error) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		n, err := tx.CountRequests(ctx, col, id)
		if err != nil {
			return fmt.Errorf("count requests: %w", err)
		}
		if n > 0 {
			return &shared.InUseError{Count: n, Message: msgInUse}
		}
		return del(ctx, tx)
	})
	if err != nil {
		if shared.IsForeignKeyViolation(err) {
			return shared.NewError(shared.ErrConflict, msgInUse)
		}
		return err
	}
	s.lookup.Invalidate(ctx)
	return nil
}

// Processes

func (s *Service) ListProcesses(ctx context.Context) ([]Process, error) {
	return s.repo.ListProcesses(ctx)
}

func (s *Service) CreateProcess(ctx context.Context, in ProcessInput) (Process, error) {
	if blank(in.Code) || blank(in.Name) || blank(in.Description) {
		return Process{}, shared.NewValidationError("code, name and description are required", nil)
	}
	p, err := s.repo.InsertProcess(ctx, *trimmed(in.Code), *trimmed(in.Name), *trimmed(in.Description))
	if err != nil {
		return Process{}, err
	}
	s.lookup.Invalidate(ctx)
	return p, nil
}

func (s *Service) UpdateProcess(ctx context.Context, id int64, in ProcessInput) (Process, error) {
	if in.Code == nil && in.Name == nil && in.Description == nil {
		return Process{}, shared.NewValidationError(msgNothingUpdate, nil)
	}
	p, err := s.repo.UpdateProcess(ctx, id, ProcessInput{Code: trimmed(in.Code), Name: trimmed(in.Name), Description: trimmed(in.Description)})
	if err != nil {
		return Process{}, err
	}
	s.lookup.Invalidate(ctx)
	return p, nil
}

func (s *Service) DeleteProcess(ctx context.Context, id int64) error {
	return s.guardedDelete(ctx, RefProcess, id, func(ctx context.Context, tx Repository) error {
		return tx.DeleteProcess(ctx, id)
	})
}

// Priorities

func (s *Service) ListPriorities(ctx context.Context) ([]Priority, error) {
	return s.repo.ListPriorities(ctx)
}

func (s *Service) CreatePriority(ctx context.Context, in PriorityInput) (Priority, error) {
	if blank(in.Name) || in.Number == nil {
		return Priority{}, shared.NewValidationError("name and number are required", nil)
	}
	p, err := s.repo.InsertPriority(ctx, *trimmed(in.Name), *in.Number)
	if err != nil {
		return Priority{}, err
	}
	s.lookup.Invalidate(ctx)
	return p, nil
}

func (s *Service) UpdatePriority(ctx context.Context, id int64, in PriorityInput) (Priority, error) {
	if in.Name == nil && in.Number == nil {
		return Priority{}, shared.NewValidationError(msgNothingUpdate, nil)
	}
	p, err := s.repo.UpdatePriority(ctx, id, PriorityInput{Name: trimmed(in.Name), Number: in.Number})
	if err != nil {
		return Priority{}, err
	}
	s.lookup.Invalidate(ctx)
	return p, nil
}

func (s *Service) DeletePriority(ctx context.Context, id int64) error {
	return s.guardedDelete(ctx, RefPriority, id, func(ctx context.Context, tx Repository) error {
		return tx.DeletePriority(ctx, id)
	})
}

// Request types

func (s *Service) ListRequestTypes(ctx context.Context) ([]RequestType, error) {
	return s.repo.ListRequestTypes(ctx)
}

func (s *Service) CreateRequestType(ctx context.Context, in RequestTypeInput) (RequestType, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return RequestType{}, shared.NewValidationError("name is required", map[string]string{"name": "required"})
	}
	t, err := s.repo.InsertRequestType(ctx, name, trimmed(in.Code))
	if err != nil {
		return RequestType{}, err
	}
	s.lookup.Invalidate(ctx)
	return t, nil
}

func (s *Service) UpdateRequestType(ctx context.Context, id int64, in RequestTypeInput) (RequestType, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return RequestType{}, shared.NewValidationError("name is required", map[string]string{"name": "required"})
	}
	t, err := s.repo.UpdateRequestType(ctx, id, name, trimmed(in.Code))
	if err != nil {
		return RequestType{}, err
	}
	s.lookup.Invalidate(ctx)
	return t, nil
}

func (s *Service) DeleteRequestType(ctx context.Context, id int64) error {
	return s.guardedDelete(ctx, RefRequestType, id, func(ctx context.Context, tx Repository) error {
		return tx.DeleteRequestType(ctx, id)
	})
}

// Statuses

func (s *Service) ListStatuses(ctx context.Context) ([]RequestStatus, error) {
	return s.repo.ListStatuses(ctx)
}

// Companies

func (s *Service) ListCompanies(ctx context.Context) ([]Company, error) {
	return s.repo.ListCompanies(ctx)
}

func (s *Service) GetCompany(ctx context.Context, id int64) (Company, error) {
	return s.repo.GetCompany(ctx, id)
}

// CreateCompany inserts a company under a unique slug derived from its name,
// optionally together with its first administrator.
func (s *Service) CreateCompany(ctx context.Context, in CompanyInput) (Company, error) {
	if blank(in.Name) || blank(in.Address) {
		return Company{}, shared.NewValidationError("name and address are required", nil)
	}
	name, address := *trimmed(in.Name), *trimmed(in.Address)
	if shared.Slugify(name) == "" {
		return Company{}, shared.NewValidationError("El nombre no genera un identificador válido", map[string]string{"name": "slug"})
	}

	var passwordHash string
	isAdmin := true
	if in.User != nil {
		in.User.Email = strings.ToLower(strings.TrimSpace(in.User.Email))
		if err := shared.ValidateStruct(s.validate, in.User, "Datos del usuario incompletos"); err != nil {
			return Company{}, err
		}
		hash, err := s.hash(in.User.Password)
		if err != nil {
			return Company{}, fmt.Errorf("hash password: %w", err)
		}
		passwordHash = hash
		if in.User.IsAdmin != nil {
			isAdmin = *in.User.IsAdmin
		}
	}

	var company Company
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		slug, err := shared.UniqueSlug(name, func(candidate string) (bool, error) {
			return tx.SlugExists(ctx, candidate)
		})
		if err != nil {
			return fmt.Errorf("unique slug: %w", err)
		}
		if company, err = tx.InsertCompany(ctx, name, slug, address); err != nil {
			return err
		}
		if in.User == nil {
			return nil
		}
		userID, err := tx.InsertCompanyAdmin(ctx, company.ID, *in.User, passwordHash, isAdmin)
		if err != nil {
			return err
		}
		company.Members = []Member{{
			UserID: userID, Email: in.User.Email, Name: in.User.Name, LastName: in.User.LastName,
			Role: shared.RoleNameCompanyAdministrator, IsAdmin: isAdmin,
		}}
		return nil
	})
	if err != nil {
		return Company{}, err
	}
	s.lookup.Invalidate(ctx)
	s.logger.InfoContext(ctx, "company created", slog.Int64("company_id", company.ID), slog.String("slug", company.Slug))
	return company, nil
}

func (s *Service) UpdateCompany(ctx context.Context, id int64, in CompanyInput) (Company, error) {
	if in.Name == nil && in.Address == nil {
		return Company{}, shared.NewValidationError(msgNothingUpdate, nil)
	}
	c, err := s.repo.UpdateCompany(ctx, id, trimmed(in.Name), trimmed(in.Address))
	if err != nil {
		return Company{}, err
	}
	s.lookup.Invalidate(ctx)
	return c, nil
}

// DeleteCompany removes the company with its memberships and process links.
func (s *Service) DeleteCompany(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		return tx.DeleteCompany(ctx, id)
	})
	if err != nil {
		return err
	}
	s.lookup.Invalidate(ctx)
	return nil
}

// Company processes

// CompanyProcesses returns the company with its process links, each with
// its request count.
func (s *Service) CompanyProcesses(ctx context.Context, companyID int64) (CompanyProcesses, error) {
	company, err := s.repo.GetCompany(ctx, companyID)
	if err != nil {
		return CompanyProcesses{}, err
	}
	links, err := s.repo.ListCompanyProcesses(ctx, companyID)
	if err != nil {
		return CompanyProcesses{}, err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range links {
		i := i
		g.Go(func() error {
			n, err := s.repo.CountCompanyProcessRequests(gctx, companyID, links[i].ProcessID)
			if err != nil {
				return err
			}
			links[i].RequestCount = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CompanyProcesses{}, fmt.Errorf("count company process requests: %w", err)
	}
	return CompanyProcesses{Company: company, Processes: links}, nil
}

func (s *Service) LinkProcess(ctx context.Context, companyID int64, in LinkInput) (CompanyProcess, error) {
	if in.ProcessID <= 0 {
		return CompanyProcess{}, shared.NewValidationError("processId is required", map[string]string{"processId": "required"})
	}
	if err := s.companyAndProcessExist(ctx, companyID, in.ProcessID); err != nil {
		return CompanyProcess{}, err
	}
	if err := s.repo.LinkProcess(ctx, companyID, in.ProcessID); err != nil {
		return CompanyProcess{}, err
	}
	return s.repo.GetCompanyProcess(ctx, companyID, in.ProcessID)
}

func (s *Service) companyAndProcessExist(ctx context.Context, companyID, processID int64) error {
	_, cerr := s.repo.GetCompany(ctx, companyID)
	_, perr := s.repo.GetProcess(ctx, processID)
	for _, err := range []error{cerr, perr} {
		if err == nil {
			continue
		}
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewError(shared.ErrNotFound, "Company or process not found")
		}
		return err
	}
	return nil
}

func (s *Service) SetProcessEnabled(ctx context.Context, companyID, processID int64, in ToggleInput) (CompanyProcess, error) {
	if in.IsEnabled == nil {
		return CompanyProcess{}, shared.NewValidationError("isEnabled is required", map[string]string{"isEnabled": "required"})
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if !*in.IsEnabled {
			n, err := tx.CountCompanyProcessRequests(ctx, companyID, processID)
			if err != nil {
				return err
			}
			if n > 0 {
				return &shared.InUseError{Count: n, Message: msgDisableInUse}
			}
		}
		return tx.SetProcessEnabled(ctx, companyID, processID, *in.IsEnabled)
	})
	if err != nil {
		return CompanyProcess{}, err
	}
	return s.repo.GetCompanyProcess(ctx, companyID, processID)
}

func (s *Service) UnlinkProcess(ctx context.Context, companyID, processID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		n, err := tx.CountCompanyProcessRequests(ctx, companyID, processID)
		if err != nil {
			return err
		}
		if n > 0 {
			return &shared.InUseError{Count: n, Message: msgInUse}
		}
		return tx.UnlinkProcess(ctx, companyID, processID)
	})
}
