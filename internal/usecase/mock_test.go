//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/adapter"
	"membership-billing/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

type stubTranslator map[string]string

func (t stubTranslator) T(key string, args ...interface{}) string {
	if v, ok := t[key]; ok {
		return v
	}
	return key
}

func staticToken(tok string) adapter.TokenSource {
	return adapter.TokenFunc(func(context.Context) (string, error) { return tok, nil })
}

// =============================
// Repositories
// =============================

// ---- Mock PackageRepository ----

type MockPackageRepo struct {
	mu       sync.Mutex
	pkgs     map[string]*model.Package
	ListFunc func(ctx context.Context) ([]*model.Package, error)
}

var _ repository.PackageRepository = (*MockPackageRepo)(nil)

func NewMockPackageRepo(pkgs ...*model.Package) *MockPackageRepo {
	m := &MockPackageRepo{pkgs: map[string]*model.Package{}}
	for _, p := range pkgs {
		m.pkgs[p.ID] = p
	}
	return m
}

func (m *MockPackageRepo) Save(ctx context.Context, tx repository.Tx, p *model.Package) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.pkgs[p.ID] = &cp
	return nil
}

func (m *MockPackageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pkgs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPackageRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Package, 0, len(m.pkgs))
	for _, p := range m.pkgs {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- Mock PaymentRecordRepository ----

type MockPaymentRecordRepo struct {
	mu      sync.Mutex
	records map[string]*model.PaymentRecord

	ListErr   error
	UpdateErr error

	Calls struct {
		UpdateComplaints int
	}
}

var _ repository.PaymentRecordRepository = (*MockPaymentRecordRepo)(nil)

func NewMockPaymentRecordRepo(recs ...*model.PaymentRecord) *MockPaymentRecordRepo {
	m := &MockPaymentRecordRepo{records: map[string]*model.PaymentRecord{}}
	for _, r := range recs {
		m.records[r.ID] = r
	}
	return m
}

func cloneRecord(r *model.PaymentRecord) *model.PaymentRecord {
	cp := *r
	cp.Details = append([]model.PaymentDetail(nil), r.Details...)
	cp.Complaints = append([]model.Complaint(nil), r.Complaints...)
	return &cp
}

func (m *MockPaymentRecordRepo) Save(ctx context.Context, tx repository.Tx, r *model.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = cloneRecord(r)
	return nil
}

func (m *MockPaymentRecordRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneRecord(r), nil
}

func (m *MockPaymentRecordRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.PaymentRecord, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentRecord
	for _, r := range m.records {
		if r.UserID == userID {
			out = append(out, cloneRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockPaymentRecordRepo) FindLatestByUserPackage(ctx context.Context, tx repository.Tx, userID, packageType string, status *model.PaymentRecordStatus) (*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.PaymentRecord
	for _, r := range m.records {
		if r.UserID != userID || r.PackageType != packageType {
			continue
		}
		if status != nil && r.Status != *status {
			continue
		}
		if best == nil || r.CreatedAt.After(best.CreatedAt) {
			best = r
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	return cloneRecord(best), nil
}

func (m *MockPaymentRecordRepo) UpdateComplaints(ctx context.Context, tx repository.Tx, id string, complaints []model.Complaint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.UpdateComplaints++
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	r, ok := m.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Complaints = append([]model.Complaint(nil), complaints...)
	return nil
}

// ---- Mock EntitlementRepository ----

type MockEntitlementRepo struct {
	byUser map[string]*model.UserPackageEntitlement
}

func NewMockEntitlementRepo() *MockEntitlementRepo {
	return &MockEntitlementRepo{byUser: map[string]*model.UserPackageEntitlement{}}
}

func (m *MockEntitlementRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.UserPackageEntitlement, error) {
	e, ok := m.byUser[userID]
	if !ok || !e.IsActive {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

// =============================
// Adapters
// =============================

// ---- Mock CheckoutProvider ----

type MockCheckoutProvider struct {
	mu sync.Mutex

	CreateFunc  func(ctx context.Context, token, packageID string) (adapter.CheckoutOrder, error)
	CaptureFunc func(ctx context.Context, token, orderID, paymentID string) (adapter.CaptureResult, error)
	CancelFunc  func(ctx context.Context, token, paymentID string) error

	Calls struct {
		Create  []string // package ids
		Capture []string // order ids
		Cancel  []string // payment ids
		Tokens  []string
	}
}

var _ adapter.CheckoutProvider = (*MockCheckoutProvider)(nil)

func (m *MockCheckoutProvider) Name() string { return "mock" }

func (m *MockCheckoutProvider) CreateCheckout(ctx context.Context, token, packageID string) (adapter.CheckoutOrder, error) {
	m.mu.Lock()
	m.Calls.Create = append(m.Calls.Create, packageID)
	m.Calls.Tokens = append(m.Calls.Tokens, token)
	m.mu.Unlock()
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, token, packageID)
	}
	return adapter.CheckoutOrder{OrderID: "order-1", PaymentID: "pay-1", PackageName: packageID, Amount: 10000}, nil
}

func (m *MockCheckoutProvider) CapturePayment(ctx context.Context, token, orderID, paymentID string) (adapter.CaptureResult, error) {
	m.mu.Lock()
	m.Calls.Capture = append(m.Calls.Capture, orderID)
	m.Calls.Tokens = append(m.Calls.Tokens, token)
	m.mu.Unlock()
	if m.CaptureFunc != nil {
		return m.CaptureFunc(ctx, token, orderID, paymentID)
	}
	return adapter.CaptureResult{Status: "COMPLETED"}, nil
}

func (m *MockCheckoutProvider) CancelPayment(ctx context.Context, token, paymentID string) error {
	m.mu.Lock()
	m.Calls.Cancel = append(m.Calls.Cancel, paymentID)
	m.Calls.Tokens = append(m.Calls.Tokens, token)
	m.mu.Unlock()
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, token, paymentID)
	}
	return nil
}

func (m *MockCheckoutProvider) cancelCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls.Cancel...)
}

// ---- Mock RefreshNotifier ----

type MockRefresh struct {
	mu    sync.Mutex
	Users []string
}

func (m *MockRefresh) NotifyRefresh(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users = append(m.Users, userID)
}

// ---- Mock Locker ----

type MockLocker struct {
	mu      sync.Mutex
	held    map[string]string
	Fail    bool
	Unlocks int
}

func NewMockLocker() *MockLocker { return &MockLocker{held: map[string]string{}} }

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Fail {
		return "", domain.ErrAlreadyExists
	}
	if _, ok := l.held[key]; ok {
		return "", domain.ErrAlreadyExists
	}
	l.held[key] = "tok-" + key
	return l.held[key], nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		l.Unlocks++
	}
	return nil
}
