package model

import (
	"sync"
	"time"

	"membership-billing/internal/domain"
)

type SessionState string

const (
	SessionCreated   SessionState = "CREATED"
	SessionCapturing SessionState = "CAPTURING"
	SessionCompleted SessionState = "COMPLETED"
	SessionCancelled SessionState = "CANCELLED"
	SessionFailed    SessionState = "FAILED"
)

func (s SessionState) IsTerminal() bool {
	return s == SessionCompleted || s == SessionCancelled || s == SessionFailed
}

// allowed transitions; no state is ever re-entered.
var sessionTransitions = map[SessionState][]SessionState{
	SessionCreated:   {SessionCapturing, SessionCancelled, SessionFailed},
	SessionCapturing: {SessionCompleted, SessionCancelled, SessionFailed},
}

// PaymentSession is the client-owned handle for one checkout attempt.
// It is not persisted. The handle is safe for concurrent use; the
// cancellation guard fires at most once per session.
type PaymentSession struct {
	ID          string
	UserID      string
	PackageID   string
	PackageName string
	OrderID     string
	PaymentID   string
	Provider    string
	Amount      int64 // minor units, as returned by create_checkout
	CreatedAt   time.Time

	mu              sync.Mutex
	state           SessionState
	cancelRequested bool
	updatedAt       time.Time
}

// NewPaymentSession returns a session in CREATED state.
func NewPaymentSession(id, userID, packageID string, now time.Time) (*PaymentSession, error) {
	if id == "" || userID == "" || packageID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &PaymentSession{
		ID:        id,
		UserID:    userID,
		PackageID: packageID,
		CreatedAt: now,
		state:     SessionCreated,
		updatedAt: now,
	}, nil
}

func (s *PaymentSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *PaymentSession) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Transition moves the session to next if the move is allowed from the current state.
func (s *PaymentSession) Transition(next SessionState, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, allowed := range sessionTransitions[s.state] {
		if allowed == next {
			s.state = next
			s.updatedAt = now
			return nil
		}
	}
	return domain.ErrInvalidTransition
}

// ClaimCancellation returns true exactly once for the lifetime of the session.
// Callers that get true own the compensating cancel request.
func (s *PaymentSession) ClaimCancellation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelRequested {
		return false
	}
	s.cancelRequested = true
	return true
}

func (s *PaymentSession) CancellationClaimed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelRequested
}
