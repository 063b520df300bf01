package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/infra/metrics"
	"membership-billing/internal/usecase"
)

func (s *Server) handlePackages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := s.deps.Membership.Packages(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]packageDTO, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, toPackageDTO(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"packages": out})
}

func (s *Server) handleMembership(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	snap, err := s.deps.Membership.Snapshot(r.Context(), p.userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMembershipDTO(snap))
}

func (s *Server) handleCheckoutOpen(w http.ResponseWriter, r *http.Request) {
	if !s.deps.CheckoutConfigured {
		s.fail(w, r, domain.ErrConfigMissing)
		return
	}
	p, _ := principalFrom(r.Context())
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	offer, err := s.deps.Membership.Quote(r.Context(), p.userID, req.PackageID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !offer.Selectable {
		writeErrorMessage(w, domain.ErrNotSelectable, s.t("error.not_selectable"))
		return
	}

	sess, err := s.deps.Desk.Open(r.Context(), p.userID, p.token, req.PackageID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(sess, nil))
}

func (s *Server) handleCheckoutGet(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	sess, err := s.deps.Desk.Get(p.userID, chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(sess, nil))
}

func (s *Server) handleCheckoutApprove(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	var req approveRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	sess, out, err := s.deps.Desk.Approve(r.Context(), p.userID, p.token, chi.URLParam(r, "sessionID"), req.OrderID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeOutcome(w, sess, out)
}

func (s *Server) handleCheckoutCancel(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	sess, out, err := s.deps.Desk.Cancel(r.Context(), p.userID, p.token, chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeOutcome(w, sess, out)
}

func (s *Server) handleCheckoutError(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	var req widgetErrorRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	sess, out, err := s.deps.Desk.Fail(r.Context(), p.userID, p.token, chi.URLParam(r, "sessionID"), req.Message)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeOutcome(w, sess, out)
}

func (s *Server) handleCheckoutTeardown(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	sess, out, err := s.deps.Desk.Teardown(r.Context(), p.userID, p.token, chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeOutcome(w, sess, out)
}

// writeOutcome reports the session state. A FAILED outcome is still a
// successful request; the message and redirect delay tell the client what to show.
func (s *Server) writeOutcome(w http.ResponseWriter, sess *model.PaymentSession, out usecase.Outcome) {
	if out.Err != nil {
		s.log.Debug().Err(out.Err).Str("session_id", sess.ID).Str("state", string(out.State)).Msg("checkout outcome")
	}
	writeJSON(w, http.StatusOK, toSessionDTO(sess, &out))
}

func (s *Server) handleComplaint(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	var req complaintRequest
	if err := decodeJSON(r, &req); err != nil {
		metrics.IncComplaint("invalid")
		s.fail(w, r, err)
		return
	}
	rec, err := s.deps.Complaints.Attach(r.Context(), p.userID, req.Tier, req.Message)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncComplaint("not_found")
		writeErrorMessage(w, err, s.t("complaint.no_record", req.Tier))
		return
	case err != nil:
		metrics.IncComplaint("error")
		s.fail(w, r, err)
		return
	}
	metrics.IncComplaint("attached")
	writeJSON(w, http.StatusCreated, complaintResponse{
		RecordID:   rec.ID,
		Status:     string(rec.Status),
		Complaints: rec.Complaints,
	})
}
