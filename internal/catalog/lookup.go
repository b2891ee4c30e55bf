package catalog

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/clinica-central/helpdesk/internal/platform/cache"
)

// Lookup resolves catalog rows by id or name through a versioned read-through
// cache. Writes made through Service bump the cache version.
type Lookup struct {
	repo   Repository
	cache  *cache.Versioned
	logger *slog.Logger
}

// NewLookup constructs a lookup. A nil cache reads straight from repo.
func NewLookup(repo Repository, c *cache.Versioned, logger *slog.Logger) *Lookup {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lookup{repo: repo, cache: c, logger: logger}
}

// RequestType resolves by id when id > 0, by name otherwise.
func (l *Lookup) RequestType(ctx context.Context, id int64, name string) (RequestType, error) {
	var out RequestType
	if id > 0 {
		err := l.cache.FetchJSON(ctx, &out, func(ctx context.Context) (any, error) {
			return l.repo.RequestTypeByID(ctx, id)
		}, "request_type", "id", strconv.FormatInt(id, 10))
		return out, err
	}
	err := l.cache.FetchJSON(ctx, &out, func(ctx context.Context) (any, error) {
		return l.repo.RequestTypeByName(ctx, name)
	}, "request_type", "name", name)
	return out, err
}

// Priority resolves by id when id > 0, by name otherwise.
func (l *Lookup) Priority(ctx context.Context, id int64, name string) (Priority, error) {
	var out Priority
	if id > 0 {
		err := l.cache.FetchJSON(ctx, &out, func(ctx context.Context) (any, error) {
			return l.repo.PriorityByID(ctx, id)
		}, "priority", "id", strconv.FormatInt(id, 10))
		return out, err
	}
	err := l.cache.FetchJSON(ctx, &out, func(ctx context.Context) (any, error) {
		return l.repo.PriorityByName(ctx, name)
	}, "priority", "name", name)
	return out, err
}

// Status resolves the first stored status matching names.
func (l *Lookup) Status(ctx context.Context, names ...string) (RequestStatus, error) {
	var out RequestStatus
	err := l.cache.FetchJSON(ctx, &out, func(ctx context.Context) (any, error) {
		return l.repo.StatusByNames(ctx, names)
	}, "status", strings.Join(names, "|"))
	return out, err
}

// CompanyBySlug resolves a company by its slug.
func (l *Lookup) CompanyBySlug(ctx context.Context, slug string) (Company, error) {
	var out Company
	err := l.cache.FetchJSON(ctx, &out, func(ctx context.Context) (any, error) {
		return l.repo.CompanyBySlug(ctx, slug)
	}, "company", slug)
	return out, err
}

// Invalidate drops every cached entry. Failures are logged; entries then
// expire with their TTL.
func (l *Lookup) Invalidate(ctx context.Context) {
	if l == nil {
		return
	}
	if err := l.cache.Bump(ctx); err != nil {
		l.logger.Warn("catalog cache bump failed", slog.Any("error", err))
	}
}
