//go:build !integration

package api

import (
	"context"
	"sync"
	"time"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/adapter"
)

var testPackages = []*model.Package{
	{ID: "premium", Name: "Premium", Price: 10000, SortOrder: 1},
	{ID: "vip", Name: "VIP", Price: 20000, SortOrder: 2},
	{ID: "golden", Name: "Golden", Price: 50000, Lifetime: true, SortOrder: 3},
}

// fakeMembership serves a fixed catalog; the user holds premium.
type fakeMembership struct {
	mu    sync.Mutex
	reads int
}

func (f *fakeMembership) Packages(ctx context.Context) ([]*model.Package, error) {
	return testPackages, nil
}

func (f *fakeMembership) Snapshot(ctx context.Context, userID string) (*model.MembershipSnapshot, error) {
	f.mu.Lock()
	f.reads++
	f.mu.Unlock()
	return &model.MembershipSnapshot{
		UserID:   userID,
		Baseline: model.Baseline{PackageID: "premium", Price: 10000, RecordID: "r1", HasCompleted: true},
		Packages: testPackages,
		Offers: []model.TierOffer{
			{PackageID: "premium", Classification: model.ClassCurrent},
			{PackageID: "vip", Classification: model.ClassUpgrade, Payable: 10000, Selectable: true},
			{PackageID: "golden", Classification: model.ClassUpgrade, Payable: 40000, Selectable: true},
		},
		TakenAt: time.Now(),
	}, nil
}

func (f *fakeMembership) Quote(ctx context.Context, userID, packageID string) (model.TierOffer, error) {
	snap, _ := f.Snapshot(ctx, userID)
	if o, ok := snap.Offer(packageID); ok {
		return o, nil
	}
	return model.TierOffer{}, domain.ErrNotFound
}

func (f *fakeMembership) snapshotReads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// fakeComplaints keeps records keyed by user and tier.
type fakeComplaints struct {
	records map[string]*model.PaymentRecord
}

func (f *fakeComplaints) Attach(ctx context.Context, userID, tier, message string) (*model.PaymentRecord, error) {
	rec, ok := f.records[userID+"/"+tier]
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec.Complaints = append(rec.Complaints, model.Complaint{Tier: tier, Message: message, CreatedAt: time.Now()})
	return rec, nil
}

type fakeProvider struct {
	mu         sync.Mutex
	captureErr error
	creates    int
	captures   int
	cancels    []string
	tokens     []string
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) CreateCheckout(ctx context.Context, token, packageID string) (adapter.CheckoutOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creates++
	p.tokens = append(p.tokens, token)
	return adapter.CheckoutOrder{OrderID: "order-" + packageID, PaymentID: "pay-" + packageID, PackageName: packageID, Amount: 10000}, nil
}

func (p *fakeProvider) CapturePayment(ctx context.Context, token, orderID, paymentID string) (adapter.CaptureResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captures++
	if p.captureErr != nil {
		return adapter.CaptureResult{}, p.captureErr
	}
	return adapter.CaptureResult{Status: "COMPLETED"}, nil
}

func (p *fakeProvider) CancelPayment(ctx context.Context, token, paymentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancels = append(p.cancels, paymentID)
	return nil
}

func (p *fakeProvider) counts() (creates, captures, cancels int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creates, p.captures, len(p.cancels)
}

type fakeRefresh struct {
	mu    sync.Mutex
	users []string
}

func (f *fakeRefresh) NotifyRefresh(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
}

func (f *fakeRefresh) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}
