package model

import "time"

type PaymentRecordStatus string

const (
	PaymentStatusPending   PaymentRecordStatus = "pending"   // tier selected or checkout created; awaiting provider
	PaymentStatusCompleted PaymentRecordStatus = "completed" // captured; entitlement granted by the backend
	PaymentStatusFailed    PaymentRecordStatus = "failed"
	PaymentStatusCancelled PaymentRecordStatus = "cancelled"
)

// IsTerminal reports whether no further status change is allowed.
func (s PaymentRecordStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusCancelled
}

// CanTransitionTo enforces forward-only status changes: pending -> one terminal state.
func (s PaymentRecordStatus) CanTransitionTo(next PaymentRecordStatus) bool {
	return s == PaymentStatusPending && next.IsTerminal()
}

type PaymentDetailKind string

const (
	DetailKindPurchase PaymentDetailKind = "purchase"
	DetailKindUpgrade  PaymentDetailKind = "upgrade"
)

// PaymentDetail is one lifecycle event stored in payment_details.
// Timestamp is kept raw because rows written by older clients may carry
// values that do not parse.
type PaymentDetail struct {
	Kind            PaymentDetailKind `json:"type"`
	PreviousPackage string            `json:"previous_package,omitempty"`
	TargetPackage   string            `json:"target_package,omitempty"`
	BaselinePrice   int64             `json:"baseline_price"`
	TargetPrice     int64             `json:"target_price"`
	DifferencePaid  int64             `json:"difference_paid"`
	Timestamp       string            `json:"timestamp,omitempty"`
}

// Complaint is a dispute note appended to a payment record.
type Complaint struct {
	Tier      string    `json:"tier"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// PaymentRecord is one user's payment attempt for a package.
type PaymentRecord struct {
	ID                string
	UserID            string
	PackageType       string
	Amount            int64 // minor units
	Status            PaymentRecordStatus
	Details           []PaymentDetail
	Complaints        []Complaint
	OrderID           string // provider order id, empty for manual selections
	ProviderPaymentID string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PendingTiers returns the set of package ids that have at least one pending record.
func PendingTiers(records []*PaymentRecord) map[string]struct{} {
	out := make(map[string]struct{})
	for _, r := range records {
		if r == nil || r.Status != PaymentStatusPending || r.PackageType == "" {
			continue
		}
		out[r.PackageType] = struct{}{}
	}
	return out
}
