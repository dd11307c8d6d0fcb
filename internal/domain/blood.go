package domain

import "strings"

// BloodGroup ABO/Rh group, e.g. "O-".
type BloodGroup string

const (
	APos  BloodGroup = "A+"
	ANeg  BloodGroup = "A-"
	BPos  BloodGroup = "B+"
	BNeg  BloodGroup = "B-"
	OPos  BloodGroup = "O+"
	ONeg  BloodGroup = "O-"
	ABPos BloodGroup = "AB+"
	ABNeg BloodGroup = "AB-"
)

// AllBloodGroups in display order.
var AllBloodGroups = []BloodGroup{APos, ANeg, BPos, BNeg, OPos, ONeg, ABPos, ABNeg}

// ParseBloodGroup accepts case-insensitive input with surrounding spaces.
func ParseBloodGroup(s string) (BloodGroup, bool) {
	g := BloodGroup(strings.ToUpper(strings.TrimSpace(s)))
	return g, g.Valid()
}

func (g BloodGroup) Valid() bool {
	for _, v := range AllBloodGroups {
		if v == g {
			return true
		}
	}
	return false
}

// StockLevel coarse inventory indicator.
type StockLevel string

const (
	StockLow  StockLevel = "LOW"
	StockMed  StockLevel = "MED"
	StockHigh StockLevel = "HIGH"
)

func ParseStockLevel(s string) (StockLevel, bool) {
	l := StockLevel(strings.ToUpper(strings.TrimSpace(s)))
	return l, l.Valid()
}

func (l StockLevel) Valid() bool {
	return l == StockLow || l == StockMed || l == StockHigh
}

// Available reports whether the level counts as "in stock". LOW does not.
func (l StockLevel) Available() bool {
	return l == StockMed || l == StockHigh
}

// Stock per-group levels of one bank.
type Stock map[BloodGroup]StockLevel

// DefaultBankStock is assigned to newly registered banks.
func DefaultBankStock() Stock {
	return Stock{
		APos: StockMed, ANeg: StockLow,
		BPos: StockMed, BNeg: StockLow,
		OPos: StockHigh, ONeg: StockLow,
		ABPos: StockLow, ABNeg: StockLow,
	}
}

// Normalize returns a copy holding exactly the eight groups; missing or invalid entries become LOW.
func (s Stock) Normalize() Stock {
	out := make(Stock, len(AllBloodGroups))
	for _, g := range AllBloodGroups {
		l := s[g]
		if !l.Valid() {
			l = StockLow
		}
		out[g] = l
	}
	return out
}

// Level returns the level for g, LOW when missing.
func (s Stock) Level(g BloodGroup) StockLevel {
	if l, ok := s[g]; ok && l.Valid() {
		return l
	}
	return StockLow
}
