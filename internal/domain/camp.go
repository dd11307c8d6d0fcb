package domain

import "time"

// CampTag display badge of a camp.
type CampTag string

const (
	CampNextWeek         CampTag = "NEXT WEEK"
	CampTomorrow         CampTag = "HAPPENING TOMORROW"
	CampRegistrationOpen CampTag = "REGISTRATION OPEN"
)

func (t CampTag) Valid() bool {
	return t == CampNextWeek || t == CampTomorrow || t == CampRegistrationOpen
}

// DonationCamp (table donation_camps).
type DonationCamp struct {
	ID          string `json:"id" db:"id"`
	OrganizerID string `json:"organizerId,omitempty" db:"organizer_id"`
	Name        string `json:"name" db:"name"`
	Date        string `json:"date" db:"date"`
	Time        string `json:"time" db:"time"`
	Address     string `json:"location" db:"address"`
	Location
	Tag             CampTag   `json:"tag" db:"tag"`
	RegisteredCount int       `json:"registeredCount" db:"registered_count"` // seed count
	ImageURL        string    `json:"imageUrl,omitempty" db:"image_url"`
	CreatedAt       time.Time `json:"createdAt,omitempty" db:"created_at"`
}

// CampRegistration one donor signed up for one camp (table camp_registrations).
type CampRegistration struct {
	CampID    string    `json:"camp_id" db:"camp_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at,omitempty" db:"created_at"`
}

// CampListing a camp with its displayed count.
type CampListing struct {
	DonationCamp
	TotalRegistered int  `json:"totalRegistered"`
	Registered      bool `json:"registered"` // viewer already signed up
}
