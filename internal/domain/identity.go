package domain

import "time"

// Role identity kind.
type Role string

const (
	RoleDonor Role = "donor"
	RoleBank  Role = "bank"
)

func (r Role) Valid() bool { return r == RoleDonor || r == RoleBank }

// BankCategory ownership category of a blood bank.
type BankCategory string

const (
	BankGovt    BankCategory = "Govt"
	BankPrivate BankCategory = "Private"
	BankNGO     BankCategory = "NGO"
)

// Donor registered individual donor (table donors).
type Donor struct {
	ID         string     `json:"id" db:"id"`
	Role       Role       `json:"role" db:"-"`
	Name       string     `json:"name" db:"name"`
	BloodGroup BloodGroup `json:"bloodGroup" db:"blood_group"`
	Location
	Address     string    `json:"location" db:"address"` // free text, "city, district"
	Mobile      string    `json:"mobile" db:"mobile"`
	Verified    bool      `json:"verified" db:"verified"`
	Elite       bool      `json:"elite,omitempty" db:"elite"`
	Gender      string    `json:"gender,omitempty" db:"gender"`
	Weight      string    `json:"weight,omitempty" db:"weight"`
	LastDonated string    `json:"lastDonated,omitempty" db:"last_donated"`
	ImageURL    string    `json:"imageUrl,omitempty" db:"image_url"`
	CreatedAt   time.Time `json:"createdAt,omitempty" db:"created_at"`
}

// BloodBank registered bank (table blood_banks).
type BloodBank struct {
	ID       string `json:"id" db:"id"`
	Role     Role   `json:"role" db:"-"`
	Name     string `json:"name" db:"name"`
	Address  string `json:"address" db:"address"`
	Phone    string `json:"phone" db:"phone"`
	Mobile   string `json:"mobile" db:"mobile"`
	Hours    string `json:"hours" db:"hours"`
	Verified bool   `json:"verified" db:"verified"`
	Location
	Stock         Stock        `json:"stock" db:"stock"`
	Category      BankCategory `json:"category,omitempty" db:"category"`
	LicenseNumber string       `json:"licenseNumber,omitempty" db:"license_number"`
	CreatedAt     time.Time    `json:"createdAt,omitempty" db:"created_at"`
}

// Identity the "who is viewing" value carried by a session.
type Identity struct {
	ID     string `json:"id"`
	Role   Role   `json:"role"`
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
	Location
	Donor *Donor     `json:"donor,omitempty"`
	Bank  *BloodBank `json:"bank,omitempty"`
}

func DonorIdentity(d *Donor) *Identity {
	return &Identity{ID: d.ID, Role: RoleDonor, Name: d.Name, Mobile: d.Mobile, Location: d.Location, Donor: d}
}

func BankIdentity(b *BloodBank) *Identity {
	return &Identity{ID: b.ID, Role: RoleBank, Name: b.Name, Mobile: b.Mobile, Location: b.Location, Bank: b}
}

func (i *Identity) IsDonor() bool { return i != nil && i.Role == RoleDonor }
func (i *Identity) IsBank() bool  { return i != nil && i.Role == RoleBank }
