package testing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/Shiten/models"
	"github.com/amirphl/Shiten/repository"
	"github.com/google/uuid"
)

// ErrInjected is returned by MemStore writes armed with FailNext
var ErrInjected = errors.New("injected store failure")

// MemStore is an in-memory stand-in for the Postgres schema. It enforces the same unique
// constraints and cascades so flows and handlers can be tested without a database.
type MemStore struct {
	mu        sync.Mutex
	companies map[uuid.UUID]models.Company
	accounts  map[uuid.UUID]models.Account
	branches  map[uuid.UUID]models.Branch
	sessions  map[uuid.UUID]models.Session
	audit     []models.AuditLog
	failNext  map[string]error
	seq       time.Duration
}

// NewMemStore returns an empty store
func NewMemStore() *MemStore {
	return &MemStore{
		companies: map[uuid.UUID]models.Company{},
		accounts:  map[uuid.UUID]models.Account{},
		branches:  map[uuid.UUID]models.Branch{},
		sessions:  map[uuid.UUID]models.Session{},
		failNext:  map[string]error{},
	}
}

// Companies returns a CompanyRepository view over the store
func (s *MemStore) Companies() repository.CompanyRepository {
	return &memCompanyRepo{s}
}

func (s *MemStore) Accounts() repository.AccountRepository {
	return &memAccountRepo{s}
}

func (s *MemStore) Branches() repository.BranchRepository {
	return &memBranchRepo{s}
}

func (s *MemStore) Sessions() repository.SessionRepository {
	return &memSessionRepo{s}
}

func (s *MemStore) AuditLogs() repository.AuditLogRepository {
	return &memAuditRepo{s}
}

// Transactor returns a Transactor that rolls the whole store back when the wrapped function fails
func (s *MemStore) Transactor() repository.Transactor {
	return &memTransactor{s}
}

// FailNext makes the next Save on table ("companies", "accounts", "branches") return err
func (s *MemStore) FailNext(table string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	s.failNext[table] = err
}

// DeleteBranch removes a branch and cascades to its session, like the FK does
func (s *MemStore) DeleteBranch(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.branches, id)
	for sid, session := range s.sessions {
		if session.BranchID == id {
			delete(s.sessions, sid)
		}
	}
}

// Counts reports the number of rows per table
func (s *MemStore) Counts() (companies, accounts, branches, sessions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.companies), len(s.accounts), len(s.branches), len(s.sessions)
}

// AuditEntries returns a copy of every stored audit entry
func (s *MemStore) AuditEntries() []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditLog(nil), s.audit...)
}

// stamp hands out strictly increasing creation times so ordering by created_at is stable
func (s *MemStore) stamp() time.Time {
	s.seq += time.Microsecond
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(s.seq)
}

func (s *MemStore) takeFailure(table string) error {
	err, ok := s.failNext[table]
	if !ok {
		return nil
	}
	delete(s.failNext, table)
	return err
}

type memTransactor struct{ s *MemStore }

// WithTransaction restores every table when fn fails
func (t *memTransactor) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	t.s.mu.Lock()
	companies := cloneMap(t.s.companies)
	accounts := cloneMap(t.s.accounts)
	branches := cloneMap(t.s.branches)
	sessions := cloneMap(t.s.sessions)
	t.s.mu.Unlock()

	if err := fn(ctx); err != nil {
		t.s.mu.Lock()
		t.s.companies, t.s.accounts, t.s.branches, t.s.sessions = companies, accounts, branches, sessions
		t.s.mu.Unlock()
		return err
	}
	return nil
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}

type memCompanyRepo struct{ s *MemStore }

func (r *memCompanyRepo) ByID(_ context.Context, id uuid.UUID) (*models.Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.companies[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (r *memCompanyRepo) ByEmail(_ context.Context, email string) (*models.Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.companies {
		if c.Email == email {
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memCompanyRepo) ByFilter(_ context.Context, filter models.CompanyFilter, _ string, limit, offset int) ([]*models.Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Company
	for _, c := range r.s.companies {
		if filter.ID != nil && c.ID != *filter.ID {
			continue
		}
		if filter.Email != nil && c.Email != *filter.Email {
			continue
		}
		if filter.Status != nil && c.IsActive() != *filter.Status {
			continue
		}
		out = append(out, ptr(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func (r *memCompanyRepo) Count(ctx context.Context, filter models.CompanyFilter) (int64, error) {
	list, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(list)), err
}

func (r *memCompanyRepo) Exists(ctx context.Context, filter models.CompanyFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *memCompanyRepo) Save(_ context.Context, c *models.Company) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure("companies"); err != nil {
		return err
	}
	for _, other := range r.s.companies {
		if other.Email == c.Email {
			return repository.NewUniqueViolation(repository.ConstraintCompanyEmail)
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == nil {
		c.Status = ptr(true)
	}
	c.CreatedAt = r.s.stamp()
	c.UpdatedAt = c.CreatedAt
	r.s.companies[c.ID] = *c
	return nil
}

func (r *memCompanyRepo) Update(_ context.Context, id uuid.UUID, update models.CompanyUpdate) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.companies[id]
	if !ok {
		return false, nil
	}
	if update.Email != nil {
		for otherID, other := range r.s.companies {
			if otherID != id && other.Email == *update.Email {
				return false, repository.NewUniqueViolation(repository.ConstraintCompanyEmail)
			}
		}
		c.Email = *update.Email
	}
	if update.BusinessName != nil {
		c.BusinessName = *update.BusinessName
	}
	if update.Mission != nil {
		c.Mission = ptr(*update.Mission)
	}
	if update.Vision != nil {
		c.Vision = ptr(*update.Vision)
	}
	if update.Description != nil {
		c.Description = ptr(*update.Description)
	}
	c.UpdatedAt = r.s.stamp()
	r.s.companies[id] = c
	return true, nil
}

func (r *memCompanyRepo) SetStatus(_ context.Context, id uuid.UUID, active bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.companies[id]
	if !ok {
		return false, nil
	}
	c.Status = ptr(active)
	c.UpdatedAt = r.s.stamp()
	r.s.companies[id] = c
	return true, nil
}

type memAccountRepo struct{ s *MemStore }

func (r *memAccountRepo) ByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.accounts[id]; ok {
		return &a, nil
	}
	return nil, nil
}

func (r *memAccountRepo) ByFilter(_ context.Context, filter models.AccountFilter, _ string, limit, offset int) ([]*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Account
	for _, a := range r.s.accounts {
		if filter.ID != nil && a.ID != *filter.ID {
			continue
		}
		if filter.CompanyID != nil && a.CompanyID != *filter.CompanyID {
			continue
		}
		out = append(out, ptr(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func (r *memAccountRepo) Count(ctx context.Context, filter models.AccountFilter) (int64, error) {
	list, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(list)), err
}

func (r *memAccountRepo) Exists(ctx context.Context, filter models.AccountFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *memAccountRepo) Save(_ context.Context, a *models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure("accounts"); err != nil {
		return err
	}
	if a.PasswordHash == "" {
		return errors.New("password_hash must not be empty")
	}
	if _, ok := r.s.companies[a.CompanyID]; !ok {
		return errors.New("accounts.company_id violates foreign key")
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = r.s.stamp()
	a.UpdatedAt = a.CreatedAt
	r.s.accounts[a.ID] = *a
	return nil
}

func (r *memAccountRepo) UpdatePasswordHash(_ context.Context, id uuid.UUID, passwordHash string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return false, nil
	}
	a.PasswordHash = passwordHash
	a.UpdatedAt = r.s.stamp()
	r.s.accounts[id] = a
	return true, nil
}

type memBranchRepo struct{ s *MemStore }

func (r *memBranchRepo) ByID(_ context.Context, id uuid.UUID) (*models.Branch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b, ok := r.s.branches[id]; ok {
		return &b, nil
	}
	return nil, nil
}

func (r *memBranchRepo) ByUsername(_ context.Context, username string) (*models.Branch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.branches {
		if b.Username == username {
			return &b, nil
		}
	}
	return nil, nil
}

func (r *memBranchRepo) ByFilter(_ context.Context, filter models.BranchFilter, _ string, limit, offset int) ([]*models.Branch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Branch
	for _, b := range r.s.branches {
		if filter.ID != nil && b.ID != *filter.ID {
			continue
		}
		if filter.Username != nil && b.Username != *filter.Username {
			continue
		}
		if filter.Kind != nil && b.Kind != *filter.Kind {
			continue
		}
		if filter.Status != nil && b.IsActive() != *filter.Status {
			continue
		}
		if filter.AccountID != nil && b.AccountID != *filter.AccountID {
			continue
		}
		if filter.CompanyID != nil && b.CompanyID != *filter.CompanyID {
			continue
		}
		out = append(out, ptr(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func (r *memBranchRepo) Count(ctx context.Context, filter models.BranchFilter) (int64, error) {
	list, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(list)), err
}

func (r *memBranchRepo) Exists(ctx context.Context, filter models.BranchFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *memBranchRepo) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.Branch, error) {
	list, err := r.ByFilter(ctx, models.BranchFilter{CompanyID: &companyID}, "", 0, 0)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].IsMain() && !list[j].IsMain() })
	return list, nil
}

func (r *memBranchRepo) Save(_ context.Context, b *models.Branch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure("branches"); err != nil {
		return err
	}
	if _, ok := r.s.accounts[b.AccountID]; !ok {
		return errors.New("branches.account_id violates foreign key")
	}
	if _, ok := r.s.companies[b.CompanyID]; !ok {
		return errors.New("branches.company_id violates foreign key")
	}
	for _, other := range r.s.branches {
		switch {
		case other.Username == b.Username:
			return repository.NewUniqueViolation(repository.ConstraintBranchUsername)
		case other.AccountID == b.AccountID:
			return repository.NewUniqueViolation(repository.ConstraintBranchAccount)
		case other.CompanyID == b.CompanyID && other.IsMain() && b.IsMain():
			return repository.NewUniqueViolation(repository.ConstraintBranchCompanyMain)
		}
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Kind == "" {
		b.Kind = models.BranchKindSub
	}
	if b.Status == nil {
		b.Status = ptr(true)
	}
	b.CreatedAt = r.s.stamp()
	b.UpdatedAt = b.CreatedAt
	r.s.branches[b.ID] = *b
	return nil
}

func (r *memBranchRepo) Update(_ context.Context, id, companyID uuid.UUID, update models.BranchUpdate) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.branches[id]
	if !ok || b.CompanyID != companyID {
		return false, nil
	}
	if update.Username != nil {
		for otherID, other := range r.s.branches {
			if otherID != id && other.Username == *update.Username {
				return false, repository.NewUniqueViolation(repository.ConstraintBranchUsername)
			}
		}
		b.Username = *update.Username
	}
	if update.Name != nil {
		b.Name = *update.Name
	}
	b.UpdatedAt = r.s.stamp()
	r.s.branches[id] = b
	return true, nil
}

func (r *memBranchRepo) SetStatus(_ context.Context, id, companyID uuid.UUID, active bool, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.branches[id]
	if !ok || b.CompanyID != companyID {
		return false, nil
	}
	b.Status = ptr(active)
	b.UpdatedAt = at
	b.DeletedAt = nil
	if !active {
		b.DeletedAt = ptr(at)
	}
	r.s.branches[id] = b
	return true, nil
}

type memSessionRepo struct{ s *MemStore }

func (r *memSessionRepo) ByToken(_ context.Context, token string) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, session := range r.s.sessions {
		if session.Token == token {
			return &session, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) ByBranchID(_ context.Context, branchID uuid.UUID) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, session := range r.s.sessions {
		if session.BranchID == branchID {
			return &session, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) Upsert(_ context.Context, session *models.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.branches[session.BranchID]; !ok {
		return errors.New("sessions.branch_id violates foreign key")
	}
	for id, other := range r.s.sessions {
		if other.BranchID == session.BranchID {
			delete(r.s.sessions, id)
			continue
		}
		if other.Token == session.Token {
			return repository.NewUniqueViolation(repository.ConstraintSessionToken)
		}
	}
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	r.s.sessions[session.ID] = *session
	return nil
}

func (r *memSessionRepo) Rotate(_ context.Context, id uuid.UUID, currentToken, newToken string, expiresAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok || session.Token != currentToken {
		return false, nil
	}
	session.Token = newToken
	session.ExpiresAt = expiresAt
	r.s.sessions[id] = session
	return true, nil
}

func (r *memSessionRepo) DeleteByID(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, id)
	return nil
}

func (r *memSessionRepo) DeleteByBranchID(_ context.Context, branchID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, session := range r.s.sessions {
		if session.BranchID == branchID {
			delete(r.s.sessions, id)
		}
	}
	return nil
}

func (r *memSessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, session := range r.s.sessions {
		if session.IsExpiredAt(now) {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

type memAuditRepo struct{ s *MemStore }

func (r *memAuditRepo) Save(_ context.Context, entry *models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.ID = uint(len(r.s.audit) + 1)
	r.s.audit = append(r.s.audit, *entry)
	return nil
}

func (r *memAuditRepo) ByFilter(_ context.Context, filter models.AuditLogFilter, _ string, limit, offset int) ([]*models.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.AuditLog
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		entry := r.s.audit[i]
		if filter.Action != nil && entry.Action != *filter.Action {
			continue
		}
		if filter.BranchID != nil && (entry.BranchID == nil || *entry.BranchID != *filter.BranchID) {
			continue
		}
		out = append(out, ptr(entry))
	}
	return paginate(out, limit, offset), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
