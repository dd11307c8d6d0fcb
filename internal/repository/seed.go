package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
)

var seedTime = time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)

// SeedDonors built-in donor directory shown before anyone registers.
func SeedDonors() []domain.Donor {
	mk := func(id, name string, g domain.BloodGroup, addr, state, district, city, mobile string) domain.Donor {
		return domain.Donor{
			ID: id, Role: domain.RoleDonor, Name: name, BloodGroup: g, Address: addr,
			Location: domain.Location{State: state, District: district, City: city},
			Mobile:   mobile, Verified: true, CreatedAt: seedTime,
		}
	}
	donors := []domain.Donor{
		mk("IBC-SEED00001", "Rahul Sharma", domain.APos, "Andheri West, Mumbai", "Maharashtra", "Mumbai Suburban", "Andheri", "9876543210"),
		mk("IBC-SEED00002", "Priya Patel", domain.ONeg, "Seven Bungalows, Mumbai", "Maharashtra", "Mumbai Suburban", "Versova", "9876543211"),
		mk("IBC-SEED00003", "Amit Desai", domain.BPos, "Versova, Mumbai", "Maharashtra", "Mumbai Suburban", "Versova", "9876543212"),
		mk("IBC-SEED00004", "Suresh Kumar", domain.APos, "Siddipet, Telangana", "Telangana", "Siddipet", "Siddipet", "9876543213"),
		mk("IBC-SEED00005", "Anjali Reddy", domain.APos, "Gajwel, Siddipet", "Telangana", "Siddipet", "Gajwel", "9876543214"),
	}
	donors[1].LastDonated = "5 Months ago"
	donors[2].Elite = true
	donors[4].Elite = true
	return donors
}

func SeedBanks() []domain.BloodBank {
	return []domain.BloodBank{
		{
			ID: "BB-SEED00001", Role: domain.RoleBank,
			Name:     "City Civil Hospital Blood Bank",
			Address:  "MG Road, Near Central Park, Mumbai, Maharashtra - 400001",
			Phone:    "+91 22 2345 6789",
			Mobile:   "2223456789",
			Hours:    "24/7 Available",
			Verified: true,
			Location: domain.Location{State: "Maharashtra", District: "Mumbai City", City: "Mumbai"},
			Stock: domain.Stock{
				domain.APos: domain.StockHigh, domain.ANeg: domain.StockMed,
				domain.BPos: domain.StockHigh, domain.BNeg: domain.StockLow,
				domain.OPos: domain.StockHigh, domain.ONeg: domain.StockMed,
				domain.ABPos: domain.StockLow, domain.ABNeg: domain.StockMed,
			},
			Category:  domain.BankGovt,
			CreatedAt: seedTime,
		},
		{
			ID: "BB-SEED00002", Role: domain.RoleBank,
			Name:     "Red Cross Society Center",
			Address:  "Indiranagar 80 Feet Road, Bangalore, Karnataka - 560038",
			Phone:    "+91 80 4567 1234",
			Mobile:   "8045671234",
			Hours:    "09:00 AM - 08:00 PM",
			Verified: true,
			Location: domain.Location{State: "Karnataka", District: "Bengaluru Urban", City: "Bangalore"},
			Stock: domain.Stock{
				domain.APos: domain.StockLow, domain.ANeg: domain.StockLow,
				domain.BPos: domain.StockMed, domain.BNeg: domain.StockMed,
				domain.OPos: domain.StockHigh, domain.ONeg: domain.StockHigh,
				domain.ABPos: domain.StockMed, domain.ABNeg: domain.StockLow,
			},
			Category:  domain.BankNGO,
			CreatedAt: seedTime,
		},
	}
}

func SeedCamps() []domain.DonationCamp {
	return []domain.DonationCamp{
		{
			ID:              "CAMP-SEED00001",
			OrganizerID:     "BB-SEED00001",
			Name:            "Mega Blood Donation Drive - City General Hospital",
			Date:            "Oct 24, 2024",
			Time:            "09:00 AM - 04:00 PM",
			Address:         "Main Atrium, Floor 1, City General Hospital, Central Avenue, Mumbai",
			Location:        domain.Location{State: "Maharashtra", District: "Mumbai City", City: "Mumbai"},
			Tag:             domain.CampNextWeek,
			RegisteredCount: 42,
			CreatedAt:       seedTime,
		},
		{
			ID:              "CAMP-SEED00002",
			OrganizerID:     "BB-SEED00002",
			Name:            "Corporate Giving Day: Tech Park Alpha",
			Date:            "Oct 19, 2024",
			Time:            "10:00 AM - 06:00 PM",
			Address:         "Building B Lobby, IT Corridor, Whitefield, Bangalore",
			Location:        domain.Location{State: "Karnataka", District: "Bengaluru Urban", City: "Bangalore"},
			Tag:             domain.CampTomorrow,
			RegisteredCount: 120,
			CreatedAt:       seedTime,
		},
	}
}

// SeedResult how many records Seed inserted per kind.
type SeedResult struct {
	Donors, Banks, Camps int
}

// Seed inserts the built-in records whose ids are not present yet.
func Seed(ctx context.Context, repos *Repos, logger *zap.Logger) (SeedResult, error) {
	var res SeedResult
	for _, d := range SeedDonors() {
		d := d
		_, err := repos.Donors.GetDonor(ctx, d.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return res, fmt.Errorf("failed to check seed donor %s: %w", d.ID, err)
		}
		if err := repos.Donors.CreateDonor(ctx, &d); err != nil && !errors.Is(err, domain.ErrDuplicate) {
			return res, err
		}
		res.Donors++
	}
	for _, b := range SeedBanks() {
		b := b
		_, err := repos.Banks.GetBank(ctx, b.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return res, fmt.Errorf("failed to check seed bank %s: %w", b.ID, err)
		}
		if err := repos.Banks.CreateBank(ctx, &b); err != nil && !errors.Is(err, domain.ErrDuplicate) {
			return res, err
		}
		res.Banks++
	}
	for _, c := range SeedCamps() {
		c := c
		_, err := repos.Camps.GetCamp(ctx, c.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return res, fmt.Errorf("failed to check seed camp %s: %w", c.ID, err)
		}
		if err := repos.Camps.CreateCamp(ctx, &c); err != nil && !errors.Is(err, domain.ErrDuplicate) {
			return res, err
		}
		res.Camps++
	}
	logger.Info("seed data applied",
		zap.String("backend", repos.Backend),
		zap.Int("donors", res.Donors),
		zap.Int("banks", res.Banks),
		zap.Int("camps", res.Camps),
	)
	return res, nil
}
