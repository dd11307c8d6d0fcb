package matcher

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"india-blood-connect/internal/domain"
)

// Match returns the requests relevant to a viewer at loc: same district or
// same state (case-insensitive), newest first. An empty field on either side
// never matches, so a viewer without a location sees nothing.
func Match(requests []domain.BloodRequest, loc domain.Location) []domain.BloodRequest {
	district := strings.TrimSpace(loc.District)
	state := strings.TrimSpace(loc.State)
	out := make([]domain.BloodRequest, 0)
	if district == "" && state == "" {
		return out
	}
	for _, r := range requests {
		if sameNonEmpty(r.District, district) || sameNonEmpty(r.State, state) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func sameNonEmpty(a, b string) bool {
	a = strings.TrimSpace(a)
	return a != "" && b != "" && strings.EqualFold(a, b)
}

// Snapshot full current match result for one viewer. Each snapshot replaces
// the previous one.
type Snapshot struct {
	ViewerID    string                `json:"viewerId,omitempty"`
	Requests    []domain.BloodRequest `json:"requests"`
	GeneratedAt time.Time             `json:"generatedAt"`
}

func (s Snapshot) Empty() bool { return len(s.Requests) == 0 }

// Headline alert bar text; empty when there is nothing to show.
func (s Snapshot) Headline() string {
	switch len(s.Requests) {
	case 0:
		return ""
	case 1:
		r := s.Requests[0]
		return fmt.Sprintf("%s Needed in %s", r.BloodGroup, r.District)
	default:
		return fmt.Sprintf("%d Emergency Alerts in %s", len(s.Requests), s.Requests[0].District)
	}
}

// IDs request ids in snapshot order.
func (s Snapshot) IDs() []string {
	ids := make([]string, len(s.Requests))
	for i, r := range s.Requests {
		ids[i] = r.ID
	}
	return ids
}
