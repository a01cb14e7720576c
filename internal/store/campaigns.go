package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/domain"
)

type campaignRepo struct {
	db DBTX
}

const campaignColumns = `id, fund_owner_id, manager_id, name, description, goal, current_balance, version,
	start_date, end_date, status, bank_info, created_at, updated_at, deleted_at`

func scanCampaign(row interface{ Scan(...any) error }) (*domain.Campaign, error) {
	var c domain.Campaign
	var bank []byte
	if err := row.Scan(&c.ID, &c.FundOwnerID, &c.ManagerID, &c.Name, &c.Description, &c.Goal, &c.CurrentBalance,
		&c.Version, &c.StartDate, &c.EndDate, &c.Status, &bank, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt); err != nil {
		return nil, err
	}
	b, err := decodeBank(bank)
	if err != nil {
		return nil, err
	}
	c.BankInfo = b
	return &c, nil
}

func (r campaignRepo) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	bank, err := encodeBank(c.BankInfo)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO campaigns (id, fund_owner_id, manager_id, name, description, goal, current_balance, version,
			start_date, end_date, status, bank_info, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID, c.FundOwnerID, c.ManagerID, c.Name, c.Description, c.Goal, c.CurrentBalance, c.Version,
		c.StartDate, c.EndDate, string(c.Status), bank, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

func (r campaignRepo) GetCampaign(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRow(ctx,
		"SELECT "+campaignColumns+" FROM campaigns WHERE id = $1 AND deleted_at IS NULL", id))
	if err != nil {
		return nil, notFound(err, "campaign "+id.String())
	}
	return c, nil
}

func (r campaignRepo) UpdateCampaignStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus, now time.Time) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE campaigns SET status = $2, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL",
		id, string(status), now)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("campaign %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r campaignRepo) ListOpenCampaigns(ctx context.Context) ([]*domain.Campaign, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+campaignColumns+" FROM campaigns WHERE deleted_at IS NULL AND status IN ('upcoming', 'active') ORDER BY start_date")
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []*domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
