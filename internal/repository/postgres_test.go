package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *Repos) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresRepos(db, zap.NewNop())
}

var donorRowColumns = []string{
	"id", "name", "blood_group", "state", "district", "city", "address", "mobile",
	"verified", "elite", "gender", "weight", "last_donated", "image_url", "created_at",
}

func TestPostgresCreateDonor_Success(t *testing.T) {
	db, mock, repos := setupMockDB(t)
	defer db.Close()

	now := time.Now()
	d := &domain.Donor{
		ID: "IBC-ABCDEFGH1", Name: "Asha", BloodGroup: domain.ONeg, Mobile: "9000000001",
		Location: domain.Location{State: "Maharashtra", District: "Pune", City: "Pune"},
		Address:  "Pune, Pune", Verified: true, CreatedAt: now,
	}

	mock.ExpectExec(`INSERT INTO donors`).
		WithArgs(d.ID, "Asha", "O-", "Maharashtra", "Pune", "Pune", "Pune, Pune", "9000000001",
			true, false, "", "", "", "", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repos.Donors.CreateDonor(context.Background(), d))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateDonor_DuplicateMobile(t *testing.T) {
	db, mock, repos := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO donors`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "donors_mobile_key"})

	err := repos.Donors.CreateDonor(context.Background(), &domain.Donor{ID: "IBC-1", Mobile: "9000000001"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindDonorByMobile(t *testing.T) {
	db, mock, repos := setupMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows(donorRowColumns).AddRow(
		"IBC-1", "Asha", "O-", "Maharashtra", "Pune", "Pune", "Pune, Pune", "9000000001",
		true, false, "", "", "", "", time.Now(),
	)
	mock.ExpectQuery(`SELECT .* FROM donors WHERE mobile = \$1`).
		WithArgs("9000000001").
		WillReturnRows(rows)

	d, err := repos.Donors.FindDonorByMobile(context.Background(), "9000000001")
	require.NoError(t, err)
	assert.Equal(t, "IBC-1", d.ID)
	assert.Equal(t, domain.ONeg, d.BloodGroup)
	assert.Equal(t, domain.RoleDonor, d.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindDonorByMobile_NotFound(t *testing.T) {
	db, mock, repos := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM donors WHERE mobile = \$1`).
		WithArgs("9999999999").
		WillReturnError(sql.ErrNoRows)

	d, err := repos.Donors.FindDonorByMobile(context.Background(), "9999999999")
	assert.Nil(t, d)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetBank_NormalizesStock(t *testing.T) {
	db, mock, repos := setupMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"id", "name", "address", "phone", "mobile", "hours", "verified", "state", "district", "city",
		"stock", "category", "license_number", "created_at",
	}).AddRow(
		"BB-1", "Ruby Hall", "Sassoon Road", "", "2000000001", "24/7", true, "Maharashtra", "Pune", "Pune",
		[]byte(`{"O-":"HIGH"}`), "Private", "", time.Now(),
	)
	mock.ExpectQuery(`SELECT .* FROM blood_banks WHERE id = \$1`).
		WithArgs("BB-1").
		WillReturnRows(rows)

	b, err := repos.Banks.GetBank(context.Background(), "BB-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StockHigh, b.Stock[domain.ONeg])
	assert.Equal(t, domain.StockLow, b.Stock[domain.APos])
	assert.Len(t, b.Stock, 8)
	assert.Equal(t, domain.BankPrivate, b.Category)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateBankStock_NotFound(t *testing.T) {
	db, mock, repos := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE blood_banks SET stock`).
		WithArgs("BB-404", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repos.Banks.UpdateBankStock(context.Background(), "BB-404", domain.DefaultBankStock())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteRequest_AbsentIsNoop(t *testing.T) {
	db, mock, repos := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM blood_requests WHERE id = \$1`).
		WithArgs("REQ-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repos.Requests.DeleteRequest(context.Background(), "REQ-404"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRequestsByContact(t *testing.T) {
	db, mock, repos := setupMockDB(t)
	defer db.Close()

	ts := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "patient_name", "blood_group", "state", "district", "city", "address", "notes",
		"contact_name", "contact_mobile", "created_by", "created_at",
	}).AddRow("REQ-1", "Ravi", "B+", "Maharashtra", "Pune", "Pune", "Ruby Hall", "", "Asha", "9000000001", "IBC-1", ts)

	mock.ExpectQuery(`SELECT .* FROM blood_requests WHERE contact_mobile = \$1`).
		WithArgs("9000000001").
		WillReturnRows(rows)

	got, err := repos.Requests.ListRequestsByContact(context.Background(), "9000000001")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.BPos, got[0].BloodGroup)
	assert.Equal(t, ts, got[0].Timestamp)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRegisterForCamp_Idempotent(t *testing.T) {
	db, mock, repos := setupMockDB(t)
	defer db.Close()

	reg := &domain.CampRegistration{CampID: "CAMP-1", UserID: "IBC-1", CreatedAt: time.Now()}

	mock.ExpectExec(`INSERT INTO camp_registrations .* ON CONFLICT \(camp_id, user_id\) DO NOTHING`).
		WithArgs("CAMP-1", "IBC-1", reg.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO camp_registrations`).
		WithArgs("CAMP-1", "IBC-1", reg.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	created, err := repos.Registrations.RegisterForCamp(ctx, reg)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repos.Registrations.RegisterForCamp(ctx, reg)
	require.NoError(t, err)
	assert.False(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCountByCamp(t *testing.T) {
	db, mock, repos := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT camp_id, COUNT\(\*\) FROM camp_registrations GROUP BY camp_id`).
		WillReturnRows(sqlmock.NewRows([]string{"camp_id", "count"}).
			AddRow("CAMP-1", 3).
			AddRow("CAMP-2", 1))

	counts, err := repos.Registrations.CountByCamp(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"CAMP-1": 3, "CAMP-2": 1}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaDeclaresUniqueness(t *testing.T) {
	assert.Contains(t, Schema, "donors_mobile_key")
	assert.Contains(t, Schema, "blood_banks_mobile_key")
	assert.Contains(t, Schema, "PRIMARY KEY (camp_id, user_id)")
}
