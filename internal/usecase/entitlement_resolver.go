package usecase

import (
	"sort"
	"strings"
	"time"

	"membership-billing/internal/domain/model"
)

// timestamp layouts seen in payment_details, most specific first.
var detailTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseDetailTime parses a raw event timestamp. ok is false for empty or
// malformed values.
func parseDetailTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range detailTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// epoch is what unresolvable timestamps collapse to.
var epoch = time.Unix(0, 0).UTC()

func recordFallbackTime(r *model.PaymentRecord) time.Time {
	if !r.UpdatedAt.IsZero() {
		return r.UpdatedAt.UTC()
	}
	if !r.CreatedAt.IsZero() {
		return r.CreatedAt.UTC()
	}
	return epoch
}

type baselineCandidate struct {
	packageID string
	at        time.Time
	recordID  string
	position  int
}

// candidateFor returns the newest (target, time) pair of a completed record.
// Each event uses its own timestamp, falling back to the record's updated
// then created time.
func candidateFor(r *model.PaymentRecord) baselineCandidate {
	if len(r.Details) == 0 {
		return baselineCandidate{packageID: r.PackageType, at: recordFallbackTime(r), recordID: r.ID, position: -1}
	}
	var best baselineCandidate
	for i, d := range r.Details {
		at, ok := parseDetailTime(d.Timestamp)
		if !ok {
			at = recordFallbackTime(r)
		}
		target := d.TargetPackage
		if target == "" {
			target = r.PackageType
		}
		c := baselineCandidate{packageID: target, at: at, recordID: r.ID, position: i}
		if i == 0 || !c.at.Before(best.at) {
			best = c
		}
	}
	return best
}

// ResolveBaseline derives the user's baseline tier from an unordered payment
// history. The baseline is the target package of the completed record whose
// newest event is latest. Ties are broken by record id (greater wins) and
// then by event position, so the result never depends on input order.
// Packages missing from the catalog resolve to price 0.
func ResolveBaseline(records []*model.PaymentRecord, catalog map[string]*model.Package) model.Baseline {
	candidates := make([]baselineCandidate, 0, len(records))
	for _, r := range records {
		if r == nil || r.Status != model.PaymentStatusCompleted {
			continue
		}
		candidates = append(candidates, candidateFor(r))
	}
	if len(candidates) == 0 {
		return model.Baseline{}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.at.Equal(b.at) {
			return a.at.After(b.at)
		}
		if a.recordID != b.recordID {
			return a.recordID > b.recordID
		}
		return a.position > b.position
	})

	top := candidates[0]
	out := model.Baseline{
		PackageID:    top.packageID,
		RecordID:     top.recordID,
		ResolvedAt:   top.at,
		HasCompleted: true,
	}
	if pkg, ok := catalog[top.packageID]; ok && pkg.Price > 0 {
		out.Price = pkg.Price
	}
	return out
}
