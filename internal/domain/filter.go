package domain

import "strings"

// Scope geographic search scope; empty fields are not constrained.
type Scope struct {
	State    string `json:"state,omitempty"`
	District string `json:"district,omitempty"`
	City     string `json:"city,omitempty"`
}

// MatchScope reports whether loc lies within scope. State and district compare
// exactly (case-insensitive); city is a substring match over loc.City or the
// record's free-text address alt.
func MatchScope(loc Location, alt string, scope Scope) bool {
	if s := strings.TrimSpace(scope.State); s != "" && !strings.EqualFold(strings.TrimSpace(loc.State), s) {
		return false
	}
	if d := strings.TrimSpace(scope.District); d != "" && !strings.EqualFold(strings.TrimSpace(loc.District), d) {
		return false
	}
	if c := strings.ToLower(strings.TrimSpace(scope.City)); c != "" {
		if !strings.Contains(strings.ToLower(loc.City), c) && !strings.Contains(strings.ToLower(alt), c) {
			return false
		}
	}
	return true
}

// HasStock reports whether the bank has group available. LOW is excluded.
func HasStock(stock Stock, group BloodGroup) bool {
	return stock.Level(group).Available()
}

// DonorFilter search page criteria.
type DonorFilter struct {
	Group BloodGroup `json:"group,omitempty"`
	Scope
}

// FilterDonors keeps input order.
func FilterDonors(donors []Donor, f DonorFilter) []Donor {
	out := make([]Donor, 0, len(donors))
	for _, d := range donors {
		if f.Group != "" && d.BloodGroup != f.Group {
			continue
		}
		if !MatchScope(d.Location, d.Address, f.Scope) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// BankFilter bank directory criteria.
type BankFilter struct {
	Text  string     `json:"q,omitempty"`
	Group BloodGroup `json:"group,omitempty"`
}

func FilterBanks(banks []BloodBank, f BankFilter) []BloodBank {
	text := strings.ToLower(strings.TrimSpace(f.Text))
	out := make([]BloodBank, 0, len(banks))
	for _, b := range banks {
		if text != "" && !bankContains(b, text) {
			continue
		}
		if f.Group != "" && !HasStock(b.Stock, f.Group) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func bankContains(b BloodBank, text string) bool {
	for _, field := range []string{b.Address, b.Name, b.City, b.District} {
		if strings.Contains(strings.ToLower(field), text) {
			return true
		}
	}
	return false
}

func FilterCamps(camps []DonationCamp, scope Scope) []DonationCamp {
	out := make([]DonationCamp, 0, len(camps))
	for _, c := range camps {
		if MatchScope(c.Location, c.Address, scope) {
			out = append(out, c)
		}
	}
	return out
}
