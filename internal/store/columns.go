package store

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/domain"
)

func encodeBank(b *domain.BankInfo) ([]byte, error) {
	if b.IsZero() {
		return nil, nil
	}
	return json.Marshal(b)
}

func decodeBank(raw []byte) (*domain.BankInfo, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var b domain.BankInfo
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode bank_info: %w", err)
	}
	return &b, nil
}

// ledgerColumns splits a ledger reference into the fund_id / campaign_id pair.
func ledgerColumns(ref domain.LedgerRef) (fundID, campaignID *uuid.UUID) {
	id := ref.ID
	if ref.Kind == domain.LedgerCampaign {
		return nil, &id
	}
	return &id, nil
}

func ledgerFromColumns(fundID, campaignID *uuid.UUID) (domain.LedgerRef, error) {
	switch {
	case fundID != nil && campaignID == nil:
		return domain.FundLedger(*fundID), nil
	case campaignID != nil && fundID == nil:
		return domain.CampaignLedger(*campaignID), nil
	}
	return domain.LedgerRef{}, fmt.Errorf("%w: row references both or neither ledger", domain.ErrInvalidLedger)
}

// ledgerWhere returns the column filtering rows of one ledger.
func ledgerWhere(ref domain.LedgerRef) string {
	if ref.Kind == domain.LedgerCampaign {
		return "campaign_id"
	}
	return "fund_id"
}
