package api

import (
	"time"

	"membership-billing/internal/domain/model"
	"membership-billing/internal/infra/adapters/payment"
	"membership-billing/internal/usecase"
)

type checkoutRequest struct {
	PackageID string `json:"package_id" validate:"required,max=64"`
}

type approveRequest struct {
	OrderID string `json:"order_id" validate:"omitempty,max=128"`
}

type widgetErrorRequest struct {
	Message string `json:"message" validate:"max=1000"`
}

type complaintRequest struct {
	Tier    string `json:"tier" validate:"required,max=64"`
	Message string `json:"message" validate:"required,max=2000"`
}

type packageDTO struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Price        int64    `json:"price"`
	PriceDisplay string   `json:"price_display"`
	Features     []string `json:"features"`
	Lifetime     bool     `json:"lifetime"`
}

func toPackageDTO(p *model.Package) packageDTO {
	features := p.Features
	if features == nil {
		features = []string{}
	}
	return packageDTO{
		ID:           p.ID,
		Name:         p.Name,
		Price:        p.Price,
		PriceDisplay: payment.FormatMinorUnits(p.Price),
		Features:     features,
		Lifetime:     p.Lifetime,
	}
}

type offerDTO struct {
	PackageID      string `json:"package_id"`
	Classification string `json:"classification"`
	Payable        int64  `json:"payable"`
	PayableDisplay string `json:"payable_display"`
	Selectable     bool   `json:"selectable"`
}

type baselineDTO struct {
	PackageID  string     `json:"package_id,omitempty"`
	Price      int64      `json:"price"`
	RecordID   string     `json:"record_id,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

type entitlementDTO struct {
	PackageType string    `json:"package_type"`
	IsActive    bool      `json:"is_active"`
	ActivatedAt time.Time `json:"activated_at"`
}

type recordDTO struct {
	ID          string                `json:"id"`
	PackageType string                `json:"package_type"`
	Amount      int64                 `json:"amount"`
	Status      string                `json:"status"`
	Details     []model.PaymentDetail `json:"payment_details"`
	Complaints  []model.Complaint     `json:"complaints"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

func toRecordDTO(r *model.PaymentRecord) recordDTO {
	out := recordDTO{
		ID:          r.ID,
		PackageType: r.PackageType,
		Amount:      r.Amount,
		Status:      string(r.Status),
		Details:     r.Details,
		Complaints:  r.Complaints,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if out.Details == nil {
		out.Details = []model.PaymentDetail{}
	}
	if out.Complaints == nil {
		out.Complaints = []model.Complaint{}
	}
	return out
}

type membershipDTO struct {
	UserID       string          `json:"user_id"`
	Baseline     baselineDTO     `json:"baseline"`
	Entitlement  *entitlementDTO `json:"entitlement"`
	PendingTiers []string        `json:"pending_tiers"`
	Packages     []packageDTO    `json:"packages"`
	Offers       []offerDTO      `json:"offers"`
	History      []recordDTO     `json:"history"`
	TakenAt      time.Time       `json:"taken_at"`
}

func toMembershipDTO(s *model.MembershipSnapshot) membershipDTO {
	out := membershipDTO{
		UserID: s.UserID,
		Baseline: baselineDTO{
			PackageID: s.Baseline.PackageID,
			Price:     s.Baseline.Price,
			RecordID:  s.Baseline.RecordID,
		},
		PendingTiers: append([]string{}, s.PendingTiers...),
		Packages:     make([]packageDTO, 0, len(s.Packages)),
		Offers:       make([]offerDTO, 0, len(s.Offers)),
		History:      make([]recordDTO, 0, len(s.History)),
		TakenAt:      s.TakenAt,
	}
	if s.Baseline.HasCompleted {
		at := s.Baseline.ResolvedAt
		out.Baseline.ResolvedAt = &at
	}
	if e := s.Entitlement; e != nil {
		out.Entitlement = &entitlementDTO{PackageType: e.PackageType, IsActive: e.IsActive, ActivatedAt: e.ActivatedAt}
	}
	for _, p := range s.Packages {
		out.Packages = append(out.Packages, toPackageDTO(p))
	}
	for _, o := range s.Offers {
		out.Offers = append(out.Offers, offerDTO{
			PackageID:      o.PackageID,
			Classification: string(o.Classification),
			Payable:        o.Payable,
			PayableDisplay: payment.FormatMinorUnits(o.Payable),
			Selectable:     o.Selectable,
		})
	}
	for _, r := range s.History {
		out.History = append(out.History, toRecordDTO(r))
	}
	return out
}

type sessionDTO struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	PackageID     string `json:"package_id"`
	PackageName   string `json:"package_name,omitempty"`
	OrderID       string `json:"order_id"`
	PaymentID     string `json:"payment_id"`
	Provider      string `json:"provider"`
	Amount        int64  `json:"amount"`
	AmountDisplay string `json:"amount_display"`
	Message       string `json:"message,omitempty"`
	RedirectAfter int64  `json:"redirect_after_ms,omitempty"`
}

func toSessionDTO(s *model.PaymentSession, out *usecase.Outcome) sessionDTO {
	dto := sessionDTO{
		ID:            s.ID,
		State:         string(s.State()),
		PackageID:     s.PackageID,
		PackageName:   s.PackageName,
		OrderID:       s.OrderID,
		PaymentID:     s.PaymentID,
		Provider:      s.Provider,
		Amount:        s.Amount,
		AmountDisplay: payment.FormatMinorUnits(s.Amount),
	}
	if out != nil {
		if out.State != "" {
			dto.State = string(out.State)
		}
		dto.Message = out.Message
		dto.RedirectAfter = out.RedirectAfter.Milliseconds()
	}
	return dto
}

type complaintResponse struct {
	RecordID   string            `json:"record_id"`
	Status     string            `json:"status"`
	Complaints []model.Complaint `json:"complaints"`
}
