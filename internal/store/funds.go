package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/domain"
)

type fundRepo struct {
	db DBTX
}

const fundColumns = `id, family_tree_id, name, balance, version, bank_info, manager_ids,
	created_by, created_at, updated_at, deleted_at`

func scanFund(row interface{ Scan(...any) error }) (*domain.Fund, error) {
	var f domain.Fund
	var bank []byte
	var createdBy *uuid.UUID
	if err := row.Scan(&f.ID, &f.FamilyTreeID, &f.Name, &f.Balance, &f.Version, &bank, &f.ManagerIDs,
		&createdBy, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt); err != nil {
		return nil, err
	}
	b, err := decodeBank(bank)
	if err != nil {
		return nil, err
	}
	f.BankInfo = b
	if createdBy != nil {
		f.CreatedBy = *createdBy
	}
	if f.ManagerIDs == nil {
		f.ManagerIDs = []uuid.UUID{}
	}
	return &f, nil
}

func (r fundRepo) CreateFund(ctx context.Context, f *domain.Fund) error {
	bank, err := encodeBank(f.BankInfo)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO funds (id, family_tree_id, name, balance, version, bank_info, manager_ids, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		f.ID, f.FamilyTreeID, f.Name, f.Balance, f.Version, bank, f.ManagerIDs, f.CreatedBy, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "funds_live_family_tree_idx") {
			return fmt.Errorf("%w: family tree already has a fund", domain.ErrInvalidState)
		}
		return fmt.Errorf("insert fund: %w", err)
	}
	return nil
}

func (r fundRepo) GetFund(ctx context.Context, id uuid.UUID) (*domain.Fund, error) {
	f, err := scanFund(r.db.QueryRow(ctx,
		"SELECT "+fundColumns+" FROM funds WHERE id = $1 AND deleted_at IS NULL", id))
	if err != nil {
		return nil, notFound(err, "fund "+id.String())
	}
	return f, nil
}

func (r fundRepo) GetFundByFamilyTree(ctx context.Context, familyTreeID uuid.UUID) (*domain.Fund, error) {
	f, err := scanFund(r.db.QueryRow(ctx,
		"SELECT "+fundColumns+" FROM funds WHERE family_tree_id = $1 AND deleted_at IS NULL", familyTreeID))
	if err != nil {
		return nil, notFound(err, "fund of tree "+familyTreeID.String())
	}
	return f, nil
}

// UpdateFundDetails writes name, bank info and managers. Balance and version are
// left to the reconciler.
func (r fundRepo) UpdateFundDetails(ctx context.Context, f *domain.Fund) error {
	bank, err := encodeBank(f.BankInfo)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE funds SET name = $2, bank_info = $3, manager_ids = $4, updated_at = $5
		 WHERE id = $1 AND deleted_at IS NULL`,
		f.ID, f.Name, bank, f.ManagerIDs, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update fund: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fund %s: %w", f.ID, domain.ErrNotFound)
	}
	return nil
}

func (r fundRepo) SoftDeleteFund(ctx context.Context, id uuid.UUID, now time.Time) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE funds SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL", id, now)
	if err != nil {
		return fmt.Errorf("delete fund: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fund %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
