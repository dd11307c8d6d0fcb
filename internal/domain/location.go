package domain

import "strings"

// Location administrative placement used by every directory record.
type Location struct {
	State    string `json:"state"`
	District string `json:"district"`
	City     string `json:"city"`
}

// Complete reports whether all three fields are set.
func (l Location) Complete() bool {
	return strings.TrimSpace(l.State) != "" &&
		strings.TrimSpace(l.District) != "" &&
		strings.TrimSpace(l.City) != ""
}

func (l Location) Trimmed() Location {
	return Location{
		State:    strings.TrimSpace(l.State),
		District: strings.TrimSpace(l.District),
		City:     strings.TrimSpace(l.City),
	}
}
