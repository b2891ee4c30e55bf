package users

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinica-central/helpdesk/internal/authz"
	"github.com/clinica-central/helpdesk/internal/shared"
)

// Service handles user administration and resolves actors for authorization.
type Service struct {
	repo     Repository
	validate *validator.Validate
	cost     int
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, validate: shared.NewValidator(), cost: bcrypt.DefaultCost, logger: logger}
}

// SetHashCost overrides the bcrypt cost.
func (s *Service) SetHashCost(cost int) {
	s.cost = cost
}

var _ authz.ActorLoader = (*Service)(nil)

// LoadActor returns the stored role and memberships of an active user.
func (s *Service) LoadActor(ctx context.Context, userID int64) (authz.Actor, error) {
	return s.repo.Actor(ctx, userID)
}

// List returns one page of users.
func (s *Service) List(ctx context.Context, filter ListFilter) (Page, error) {
	filter.Page, filter.PageSize = shared.NormalizePage(filter.Page, filter.PageSize)
	offset := (filter.Page - 1) * filter.PageSize
	rows, total, err := s.repo.List(ctx, filter, filter.PageSize, offset)
	if err != nil {
		return Page{}, err
	}
	return Page{Data: rows, Pagination: shared.NewPagination(filter.Page, filter.PageSize, total)}, nil
}

// Get returns one user with memberships.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Create inserts a user and, when a company slug is given, its membership.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	in.normalize()
	if err := shared.ValidateStruct(s.validate, in, "Faltan campos requeridos"); err != nil {
		return User{}, err
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return User{}, err
	}

	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		roleID, err := tx.RoleID(ctx, in.RoleName)
		if err != nil {
			return err
		}
		var companyID int64
		if in.CompanySlug != "" {
			if companyID, err = tx.CompanyID(ctx, in.CompanySlug); err != nil {
				return err
			}
		}
		id, err = tx.Insert(ctx, Record{
			Email: in.Email, Name: in.Name, LastName: in.LastName,
			PasswordHash: hash, RoleID: roleID,
		})
		if err != nil {
			return err
		}
		if companyID == 0 {
			return nil
		}
		return tx.ReplaceMembership(ctx, id, companyID, in.IsCompanyAdmin)
	})
	if err != nil {
		return User{}, err
	}
	s.logger.InfoContext(ctx, "user created", slog.Int64("user_id", id), slog.String("role", in.RoleName))
	return s.repo.Get(ctx, id)
}

// Update rewrites the profile and replaces all memberships with the given company.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (User, error) {
	in.normalize()
	if err := shared.ValidateStruct(s.validate, in, "Faltan campos requeridos"); err != nil {
		return User{}, err
	}
	rec := Record{Email: in.Email, Name: in.Name, LastName: in.LastName, IsActive: in.IsActive}
	if in.Password != "" {
		hash, err := s.hash(in.Password)
		if err != nil {
			return User{}, err
		}
		rec.PasswordHash = hash
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if in.RoleName != "" {
			roleID, err := tx.RoleID(ctx, in.RoleName)
			if err != nil {
				return err
			}
			rec.RoleID = roleID
		}
		companyID, err := tx.CompanyID(ctx, in.CompanySlug)
		if err != nil {
			return err
		}
		if err := tx.Update(ctx, id, rec); err != nil {
			return err
		}
		return tx.ReplaceMembership(ctx, id, companyID, in.IsCompanyAdmin)
	})
	if err != nil {
		return User{}, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes the user and its memberships.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		return tx.Delete(ctx, id)
	})
}
