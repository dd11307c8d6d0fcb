package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
	"india-blood-connect/internal/store"
)

// TableBackend the five primitives of a table-like store. Implemented by
// store.Directory (Redis, one JSON list per table) and store.TableClient
// (hosted REST service). Rows use the domain JSON encoding.
type TableBackend interface {
	Insert(ctx context.Context, table string, record any) error
	SelectAll(ctx context.Context, table string, out any) error
	SelectEq(ctx context.Context, table, column, value string, out any) error
	UpdateByID(ctx context.Context, table, id string, patch map[string]any) error
	DeleteByID(ctx context.Context, table, id string) error
}

var (
	_ TableBackend = (*store.Directory)(nil)
	_ TableBackend = (*store.TableClient)(nil)
)

// TableRepository implements every repository interface over a TableBackend.
// It has no uniqueness guarantees of its own: duplicate checks are
// scan-then-insert and race under concurrent writers.
type TableRepository struct {
	t      TableBackend
	logger *zap.Logger
}

func NewTableRepository(t TableBackend, logger *zap.Logger) *TableRepository {
	return &TableRepository{t: t, logger: logger}
}

var (
	_ DonorsRepository            = (*TableRepository)(nil)
	_ BanksRepository             = (*TableRepository)(nil)
	_ RequestsRepository          = (*TableRepository)(nil)
	_ CampsRepository             = (*TableRepository)(nil)
	_ CampRegistrationsRepository = (*TableRepository)(nil)
)

// NewDirectoryRepos repositories over the Redis directory.
func NewDirectoryRepos(d *store.Directory, logger *zap.Logger) *Repos {
	return newTableRepos("directory", d, logger)
}

// NewHostedRepos repositories over the hosted data service.
func NewHostedRepos(c *store.TableClient, logger *zap.Logger) *Repos {
	return newTableRepos("hosted", c, logger)
}

func newTableRepos(name string, t TableBackend, logger *zap.Logger) *Repos {
	r := NewTableRepository(t, logger)
	return &Repos{Backend: name, Donors: r, Banks: r, Requests: r, Camps: r, Registrations: r}
}

// --- donors ---

func (r *TableRepository) CreateDonor(ctx context.Context, d *domain.Donor) error {
	d.Role = domain.RoleDonor
	if err := r.t.Insert(ctx, store.TableDonors, d); err != nil {
		return fmt.Errorf("failed to create donor: %w", err)
	}
	return nil
}

func (r *TableRepository) ListDonors(ctx context.Context) ([]domain.Donor, error) {
	var out []domain.Donor
	if err := r.t.SelectAll(ctx, store.TableDonors, &out); err != nil {
		return nil, fmt.Errorf("failed to list donors: %w", err)
	}
	for i := range out {
		out[i].Role = domain.RoleDonor
	}
	return nonNil(out), nil
}

func (r *TableRepository) GetDonor(ctx context.Context, id string) (*domain.Donor, error) {
	return firstDonor(r.selectDonors(ctx, "id", id))
}

func (r *TableRepository) FindDonorByMobile(ctx context.Context, mobile string) (*domain.Donor, error) {
	return firstDonor(r.selectDonors(ctx, "mobile", mobile))
}

func (r *TableRepository) selectDonors(ctx context.Context, column, value string) ([]domain.Donor, error) {
	var out []domain.Donor
	if err := r.t.SelectEq(ctx, store.TableDonors, column, value, &out); err != nil {
		return nil, fmt.Errorf("failed to select donors: %w", err)
	}
	return out, nil
}

func firstDonor(donors []domain.Donor, err error) (*domain.Donor, error) {
	if err != nil {
		return nil, err
	}
	if len(donors) == 0 {
		return nil, fmt.Errorf("donor: %w", domain.ErrNotFound)
	}
	d := donors[0]
	d.Role = domain.RoleDonor
	return &d, nil
}

// --- banks ---

func (r *TableRepository) CreateBank(ctx context.Context, b *domain.BloodBank) error {
	b.Role = domain.RoleBank
	b.Stock = b.Stock.Normalize()
	if err := r.t.Insert(ctx, store.TableBanks, b); err != nil {
		return fmt.Errorf("failed to create blood bank: %w", err)
	}
	return nil
}

func (r *TableRepository) ListBanks(ctx context.Context) ([]domain.BloodBank, error) {
	var out []domain.BloodBank
	if err := r.t.SelectAll(ctx, store.TableBanks, &out); err != nil {
		return nil, fmt.Errorf("failed to list blood banks: %w", err)
	}
	for i := range out {
		normalizeBank(&out[i])
	}
	return nonNil(out), nil
}

func (r *TableRepository) GetBank(ctx context.Context, id string) (*domain.BloodBank, error) {
	return r.firstBank(ctx, "id", id)
}

func (r *TableRepository) FindBankByMobile(ctx context.Context, mobile string) (*domain.BloodBank, error) {
	return r.firstBank(ctx, "mobile", mobile)
}

func (r *TableRepository) UpdateBankStock(ctx context.Context, id string, stock domain.Stock) error {
	if err := r.t.UpdateByID(ctx, store.TableBanks, id, map[string]any{"stock": stock.Normalize()}); err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	return nil
}

func (r *TableRepository) firstBank(ctx context.Context, column, value string) (*domain.BloodBank, error) {
	var out []domain.BloodBank
	if err := r.t.SelectEq(ctx, store.TableBanks, column, value, &out); err != nil {
		return nil, fmt.Errorf("failed to select blood banks: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("blood bank: %w", domain.ErrNotFound)
	}
	b := out[0]
	normalizeBank(&b)
	return &b, nil
}

func normalizeBank(b *domain.BloodBank) {
	b.Role = domain.RoleBank
	b.Stock = b.Stock.Normalize()
}

// --- requests ---

func (r *TableRepository) CreateRequest(ctx context.Context, req *domain.BloodRequest) error {
	if err := r.t.Insert(ctx, store.TableRequests, req); err != nil {
		return fmt.Errorf("failed to create blood request: %w", err)
	}
	return nil
}

func (r *TableRepository) ListRequests(ctx context.Context) ([]domain.BloodRequest, error) {
	var out []domain.BloodRequest
	if err := r.t.SelectAll(ctx, store.TableRequests, &out); err != nil {
		return nil, fmt.Errorf("failed to list blood requests: %w", err)
	}
	return nonNil(out), nil
}

func (r *TableRepository) GetRequest(ctx context.Context, id string) (*domain.BloodRequest, error) {
	var out []domain.BloodRequest
	if err := r.t.SelectEq(ctx, store.TableRequests, "id", id, &out); err != nil {
		return nil, fmt.Errorf("failed to select blood request: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("blood request %s: %w", id, domain.ErrNotFound)
	}
	return &out[0], nil
}

func (r *TableRepository) DeleteRequest(ctx context.Context, id string) error {
	if err := r.t.DeleteByID(ctx, store.TableRequests, id); err != nil {
		return fmt.Errorf("failed to delete blood request: %w", err)
	}
	return nil
}

func (r *TableRepository) ListRequestsByContact(ctx context.Context, mobile string) ([]domain.BloodRequest, error) {
	var out []domain.BloodRequest
	if err := r.t.SelectEq(ctx, store.TableRequests, "contactMobile", mobile, &out); err != nil {
		return nil, fmt.Errorf("failed to select blood requests: %w", err)
	}
	return nonNil(out), nil
}

// --- camps ---

func (r *TableRepository) CreateCamp(ctx context.Context, c *domain.DonationCamp) error {
	if err := r.t.Insert(ctx, store.TableCamps, c); err != nil {
		return fmt.Errorf("failed to create donation camp: %w", err)
	}
	return nil
}

func (r *TableRepository) ListCamps(ctx context.Context) ([]domain.DonationCamp, error) {
	var out []domain.DonationCamp
	if err := r.t.SelectAll(ctx, store.TableCamps, &out); err != nil {
		return nil, fmt.Errorf("failed to list donation camps: %w", err)
	}
	return nonNil(out), nil
}

func (r *TableRepository) GetCamp(ctx context.Context, id string) (*domain.DonationCamp, error) {
	var out []domain.DonationCamp
	if err := r.t.SelectEq(ctx, store.TableCamps, "id", id, &out); err != nil {
		return nil, fmt.Errorf("failed to select donation camp: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("donation camp %s: %w", id, domain.ErrNotFound)
	}
	return &out[0], nil
}

// --- camp registrations ---

// RegisterForCamp inserts unconditionally. Only a backend with its own unique
// key (the hosted service) can report created=false.
func (r *TableRepository) RegisterForCamp(ctx context.Context, reg *domain.CampRegistration) (bool, error) {
	err := r.t.Insert(ctx, store.TableCampRegistrations, reg)
	if errors.Is(err, domain.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to register for camp: %w", err)
	}
	return true, nil
}

func (r *TableRepository) ListRegistrations(ctx context.Context, campID string) ([]domain.CampRegistration, error) {
	var out []domain.CampRegistration
	if err := r.t.SelectEq(ctx, store.TableCampRegistrations, "camp_id", campID, &out); err != nil {
		return nil, fmt.Errorf("failed to list camp registrations: %w", err)
	}
	return nonNil(out), nil
}

func (r *TableRepository) IsRegistered(ctx context.Context, campID, userID string) (bool, error) {
	regs, err := r.ListRegistrations(ctx, campID)
	if err != nil {
		return false, err
	}
	for _, reg := range regs {
		if reg.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *TableRepository) CountByCamp(ctx context.Context) (map[string]int, error) {
	var out []domain.CampRegistration
	if err := r.t.SelectAll(ctx, store.TableCampRegistrations, &out); err != nil {
		return nil, fmt.Errorf("failed to count camp registrations: %w", err)
	}
	counts := make(map[string]int, len(out))
	for _, reg := range out {
		counts[reg.CampID]++
	}
	return counts, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
