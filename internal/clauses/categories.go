package clauses

import (
	"strings"

	"contractrag/internal/domain"
)

// term is one piece of keyword evidence. A single part is a plain substring
// hit; several parts must all appear in the unit.
type term []string

func (t term) tuple() bool { return len(t) > 1 }

func (t term) in(low string) bool {
	for _, p := range t {
		if !strings.Contains(low, p) {
			return false
		}
	}
	return true
}

type category struct {
	name  string
	terms []term
}

// categories is ordered; the order decides ties in the relaxed pass and the
// category list sent to generative models.
var categories = []category{
	{"Term/Duration", []term{{"term"}, {"duration"}, {"renew"}, {"renewal"}, {"expiration"}, {"expiry"}, {"initial subscription term"}, {"renewal period"}}},
	{"Termination", []term{{"terminate"}, {"termination"}, {"expire"}, {"early termination"}, {"notice period"}}},
	{"Payment", []term{{"payment"}, {"fee"}, {"fees"}, {"charge"}, {"charges"}, {"invoice"}, {"billing"}, {"payable"}}},
	{"Late fees/penalties", []term{{"late", "fee"}, {"late", "payment"}, {"overdue", "interest"}, {"penalt"}, {"liquidated damages"}}},
	{"Confidentiality", []term{{"confidential"}, {"non-disclosure"}, {"confidential information"}}},
	{"IP ownership", []term{{"intellectual property"}, {"ip rights"}, {"ownership"}, {"retain ownership"}, {"license"}, {"licence"}}},
	{"Liability", []term{{"liability"}, {"liable"}, {"limitation of liability"}, {"limit liability"}, {"liability cap"}}},
	{"Indemnity", []term{{"indemnify"}, {"indemnification"}, {"hold harmless"}}},
	{"Arbitration/Jurisdiction", []term{{"jurisdiction"}, {"governing law"}, {"arbitration"}, {"venue"}, {"court"}}},
	{"Auto-renewal", []term{{"auto-renew"}, {"automatic renewal"}}},
	{"Unusual obligations", []term{{"sole discretion"}, {"audit rights"}, {"beta services"}, {"unlimited liability"}, {"exclusive remedy"}}},
}

// TargetClauses lists the recognized clause categories in display order.
func TargetClauses() []string {
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = c.name
	}
	return out
}

// DefaultImportance is the importance a clause of the given type starts with.
func DefaultImportance(clauseType string) domain.Importance {
	switch clauseType {
	case "Indemnity", "Liability":
		return domain.ImportanceHigh
	case "Auto-renewal", "Late fees/penalties":
		return domain.ImportanceMedium
	default:
		return domain.ImportanceLow
	}
}

// score sums evidence for one category: +2 per substring hit and +3 per
// fully present tuple.
func (c category) score(low string) int {
	s := 0
	for _, t := range c.terms {
		if !t.in(low) {
			continue
		}
		if t.tuple() {
			s += 3
		} else {
			s += 2
		}
	}
	return s
}

// hits counts matching terms regardless of kind.
func (c category) hits(low string) int {
	n := 0
	for _, t := range c.terms {
		if t.in(low) {
			n++
		}
	}
	return n
}
