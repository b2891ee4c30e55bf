// Package requeststest provides an in-memory request store for tests.
package requeststest

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/clinica-central/helpdesk/internal/authz"
	"github.com/clinica-central/helpdesk/internal/catalog"
	"github.com/clinica-central/helpdesk/internal/requests"
	"github.com/clinica-central/helpdesk/internal/shared"
)

type row struct {
	req requests.NewRequest
	id  int64
}

// Store implements requests.Repository, requests.TxRepository,
// requests.Catalog and requests.Notifier in memory. Transactions roll back
// every change when the callback fails.
type Store struct {
	mu sync.Mutex

	Types      []catalog.RequestType
	Priorities []catalog.Priority
	Statuses   []catalog.RequestStatus
	Companies  []catalog.Company
	Processes  []catalog.Process
	Users      map[int64]requests.UserRef

	rows     map[int64]row
	logs     []requests.Log
	nextID   int64
	nextLog  int64
	Notified []requests.Notification
	clock    time.Time
}

// NewStore returns a store seeded with the default clinic catalog.
func NewStore() *Store {
	return &Store{
		Types: []catalog.RequestType{
			{ID: 1, Name: requests.DefaultRequestTypeName, Code: "MT"},
			{ID: 2, Name: "Soporte Técnico", Code: "ST"},
		},
		Priorities: []catalog.Priority{
			{ID: 1, Name: "Alta - Detiene la operación", Number: 1},
			{ID: 2, Name: requests.DefaultPriorityName, Number: 2},
		},
		Statuses: []catalog.RequestStatus{
			{ID: 1, Name: "Pending"},
			{ID: 2, Name: "In Progress"},
			{ID: 3, Name: "Completed"},
			{ID: 4, Name: "Cancelled"},
		},
		Companies: []catalog.Company{
			{ID: 1, Name: "Clinica Central", Slug: "clinica-central"},
			{ID: 2, Name: "Clinica Norte", Slug: "clinica-norte"},
		},
		Processes: []catalog.Process{{ID: 1, Code: "INF", Name: "Infraestructura"}},
		Users:     map[int64]requests.UserRef{},
		rows:      map[int64]row{},
		clock:     time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

// tick advances the clock used for log dates.
func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Minute)
	return s.clock
}

// Logs returns a copy of the audit entries of requestID, oldest first.
func (s *Store) Logs(requestID int64) []requests.Log {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []requests.Log
	for _, l := range s.logs {
		if l.RequestID == requestID {
			out = append(out, l)
		}
	}
	return out
}

// SetStatus forces the status of a request, bypassing the workflow.
func (s *Store) SetStatus(requestID int64, status requests.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rows[requestID]
	for _, st := range s.Statuses {
		if st.Name == string(status) {
			r.req.StatusID = st.ID
		}
	}
	s.rows[requestID] = r
}

// Seed inserts a request directly and returns its id.
func (s *Store) Seed(req requests.NewRequest) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.rows[s.nextID] = row{id: s.nextID, req: req}
	return s.nextID
}

// Catalog

func (s *Store) RequestType(_ context.Context, id int64, name string) (catalog.RequestType, error) {
	for _, t := range s.Types {
		if (id > 0 && t.ID == id) || (id == 0 && t.Name == name) {
			return t, nil
		}
	}
	return catalog.RequestType{}, shared.NewError(shared.ErrNotFound, "Tipo de solicitud no encontrado")
}

func (s *Store) Priority(_ context.Context, id int64, name string) (catalog.Priority, error) {
	for _, p := range s.Priorities {
		if (id > 0 && p.ID == id) || (id == 0 && p.Name == name) {
			return p, nil
		}
	}
	return catalog.Priority{}, shared.NewError(shared.ErrNotFound, "Prioridad no encontrada")
}

func (s *Store) Status(_ context.Context, names ...string) (catalog.RequestStatus, error) {
	for _, name := range names {
		for _, st := range s.Statuses {
			if st.Name == name {
				return st, nil
			}
		}
	}
	return catalog.RequestStatus{}, shared.NewError(shared.ErrNotFound, "Estado no encontrado")
}

func (s *Store) CompanyBySlug(_ context.Context, slug string) (catalog.Company, error) {
	for _, c := range s.Companies {
		if c.Slug == slug {
			return c, nil
		}
	}
	return catalog.Company{}, shared.NewError(shared.ErrNotFound, "Empresa no encontrada")
}

// Repository

func (s *Store) WithTx(ctx context.Context, fn func(context.Context, requests.TxRepository) error) error {
	s.mu.Lock()
	rows, logs, nextID, nextLog := maps.Clone(s.rows), slices.Clone(s.logs), s.nextID, s.nextLog
	s.mu.Unlock()
	if err := fn(ctx, s); err != nil {
		s.mu.Lock()
		s.rows, s.logs, s.nextID, s.nextLog = rows, logs, nextID, nextLog
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) summary(r row) requests.Summary {
	sum := requests.Summary{
		ID:            r.id,
		RequestCode:   r.req.Code,
		Subject:       r.req.Subject,
		Description:   r.req.Description,
		Location:      r.req.Location,
		DateRequested: r.req.DateRequested,
		CompanyID:     r.req.CompanyID,
		RequesterID:   r.req.RequesterID,
		Requester:     s.Users[r.req.RequesterID],
	}
	sum.Requester.ID = r.req.RequesterID
	for _, t := range s.Types {
		if t.ID == r.req.RequestTypeID {
			sum.Type = requests.TypeRef{ID: t.ID, Name: t.Name, Code: t.Code}
		}
	}
	for _, p := range s.Priorities {
		if p.ID == r.req.PriorityID {
			sum.Priority = requests.PriorityRef{ID: p.ID, Name: p.Name, Number: p.Number}
		}
	}
	for _, st := range s.Statuses {
		if st.ID == r.req.StatusID {
			sum.Status = requests.StatusRef{ID: st.ID, Name: st.Name}
		}
	}
	for _, c := range s.Companies {
		if c.ID == r.req.CompanyID {
			sum.Company = requests.CompanyRef{ID: c.ID, Name: c.Name, Slug: c.Slug}
		}
	}
	for _, p := range s.Processes {
		if p.ID == r.req.ProcessID {
			sum.Process = requests.ProcessRef{ID: p.ID, Code: p.Code, Name: p.Name}
		}
	}
	return sum
}

func (s *Store) List(_ context.Context, scope authz.Scope, filter requests.ListFilter) ([]requests.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []requests.Summary
	for _, r := range s.rows {
		if !scope.Allows(r.req.CompanyID, r.req.RequesterID) {
			continue
		}
		sum := s.summary(r)
		if filter.Status != "" && sum.Status.Name != filter.Status {
			continue
		}
		if scope.Kind == authz.ScopeAll {
			if filter.Company != "" && sum.Company.Slug != filter.Company {
				continue
			}
			if filter.UserID > 0 && sum.RequesterID != filter.UserID {
				continue
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) Get(_ context.Context, id int64) (requests.Detail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return requests.Detail{}, shared.NewError(shared.ErrNotFound, "Solicitud no encontrada")
	}
	detail := requests.Detail{Summary: s.summary(r), Logs: []requests.Log{}}
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].RequestID == id {
			detail.Logs = append(detail.Logs, s.logs[i])
		}
	}
	return detail, nil
}

func (s *Store) Recipients(_ context.Context, requestID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[requestID]
	if !ok {
		return nil, nil
	}
	if u, ok := s.Users[r.req.RequesterID]; ok && u.Email != "" {
		return []string{u.Email}, nil
	}
	return nil, nil
}

// TxRepository

func (s *Store) LockRequestType(_ context.Context, typeID int64) (string, error) {
	for _, t := range s.Types {
		if t.ID == typeID {
			return t.Code, nil
		}
	}
	return "", shared.ErrCatalogIncomplete
}

func (s *Store) LatestCode(_ context.Context, typeID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest string
	for _, r := range s.rows {
		if r.req.RequestTypeID != typeID {
			continue
		}
		c := r.req.Code
		if len(c) > len(latest) || (len(c) == len(latest) && c > latest) {
			latest = c
		}
	}
	return latest, nil
}

func (s *Store) CountByType(_ context.Context, typeID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.rows {
		if r.req.RequestTypeID == typeID {
			n++
		}
	}
	return n, nil
}

func (s *Store) Insert(_ context.Context, req requests.NewRequest) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.req.RequestTypeID == req.RequestTypeID && r.req.Code == req.Code {
			return 0, shared.NewError(shared.ErrConflict, "duplicate code")
		}
	}
	s.nextID++
	s.rows[s.nextID] = row{id: s.nextID, req: req}
	return s.nextID, nil
}

func (s *Store) LockStatus(_ context.Context, requestID int64) (requests.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[requestID]
	if !ok {
		return "", shared.NewError(shared.ErrNotFound, "Solicitud no encontrada")
	}
	for _, st := range s.Statuses {
		if st.ID == r.req.StatusID {
			status, _ := requests.ParseStatus(st.Name)
			return status, nil
		}
	}
	return "", shared.NewError(shared.ErrNotFound, "Estado no encontrado")
}

func (s *Store) UpdateStatus(_ context.Context, requestID, statusID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rows[requestID]
	r.req.StatusID = statusID
	s.rows[requestID] = r
	return nil
}

func (s *Store) AppendLog(_ context.Context, requestID, userID int64, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextLog++
	s.logs = append(s.logs, requests.Log{
		ID:         s.nextLog,
		RequestID:  requestID,
		UserID:     userID,
		ActionDone: action,
		LogDate:    s.tick(),
		User:       s.Users[userID],
	})
	return nil
}

// Notifier

func (s *Store) NotifyRequest(_ context.Context, n requests.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Notified = append(s.Notified, n)
	return nil
}

var (
	_ requests.Repository   = (*Store)(nil)
	_ requests.TxRepository = (*Store)(nil)
	_ requests.Catalog      = (*Store)(nil)
	_ requests.Notifier     = (*Store)(nil)
)
