package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/domain"
	"github.com/punchamoorthee/fundledger/internal/money"
)

func TestGoalReachedCompletesCampaign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.campaign(t, money.New(1_000))
	if c.Status != domain.CampaignActive {
		t.Fatalf("new campaign status: %s", c.Status)
	}
	ref := c.Ledger()

	f.credit(t, ref, money.New(600))
	if got, _ := f.svc.GetCampaign(ctx, c.ID); got.Status != domain.CampaignActive {
		t.Fatalf("status below goal: %s", got.Status)
	}
	f.credit(t, ref, money.New(400))

	got, err := f.svc.GetCampaign(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.CampaignCompleted || !got.CurrentBalance.Equal(money.New(1_000)) {
		t.Fatalf("campaign after goal: status=%s balance=%s", got.Status, got.CurrentBalance)
	}
	if !f.balance(t, f.fund.Ledger()).IsZero() {
		t.Error("campaign donations leaked into the fund ledger")
	}

	_, err = f.svc.CreateDonation(ctx, CreateDonationInput{Ledger: ref, Amount: money.New(10), Method: domain.MethodCash})
	if !errors.Is(err, domain.ErrCampaignNotActive) {
		t.Errorf("donation to completed campaign: got %v", err)
	}

	// Completed campaigns still pay out what they raised.
	e := f.expense(t, ref, money.New(250))
	out, err := f.svc.ApproveExpense(ctx, e.ID, f.manager, "", PaymentProof{URL: "https://blob.test/shrine.png"})
	if err != nil {
		t.Fatalf("ApproveExpense: %v", err)
	}
	if !out.Balance.Equal(money.New(750)) {
		t.Errorf("balance after expense: %s", out.Balance)
	}
	got, _ = f.svc.GetCampaign(ctx, c.ID)
	if got.Status != domain.CampaignCompleted || !got.CurrentBalance.Equal(money.New(750)) {
		t.Errorf("campaign after expense: status=%s balance=%s", got.Status, got.CurrentBalance)
	}
}

func TestUpcomingCampaignRefusesMoney(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.CreateCampaign(ctx, CreateCampaignInput{
		FundOwnerID: f.tree,
		Name:        "Spring festival",
		Goal:        money.New(5_000),
		StartDate:   testNow.Add(48 * time.Hour),
		EndDate:     testNow.Add(10 * 24 * time.Hour),
		Actor:       f.manager,
	})
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != domain.CampaignUpcoming {
		t.Fatalf("status: %s", c.Status)
	}
	_, err = f.svc.CreateDonation(ctx, CreateDonationInput{Ledger: c.Ledger(), Amount: money.New(10), Method: domain.MethodCash})
	if !errors.Is(err, domain.ErrCampaignNotActive) {
		t.Errorf("donation before start: got %v", err)
	}
	_, err = f.svc.CreateExpense(ctx, CreateExpenseInput{Ledger: c.Ledger(), Amount: money.New(10), Category: "food", Actor: f.manager})
	if !errors.Is(err, domain.ErrCampaignNotActive) {
		t.Errorf("expense before start: got %v", err)
	}
}

func TestRefreshCampaignStatuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	upcoming, err := f.svc.CreateCampaign(ctx, CreateCampaignInput{
		FundOwnerID: f.tree,
		Name:        "Lunar new year",
		Goal:        money.New(5_000),
		StartDate:   testNow.Add(time.Hour),
		EndDate:     testNow.Add(72 * time.Hour),
		Actor:       f.manager,
	})
	if err != nil {
		t.Fatal(err)
	}
	f.campaign(t, money.New(1_000))

	if n, err := f.svc.RefreshCampaignStatuses(ctx); err != nil || n != 0 {
		t.Fatalf("nothing due: changed=%d err=%v", n, err)
	}

	f.clock.Set(testNow.Add(2 * time.Hour))
	n, err := f.svc.RefreshCampaignStatuses(ctx)
	if err != nil || n != 1 {
		t.Fatalf("after start: changed=%d err=%v", n, err)
	}
	stored, _ := f.store.Campaigns().GetCampaign(ctx, upcoming.ID)
	if stored.Status != domain.CampaignActive {
		t.Errorf("persisted status: %s", stored.Status)
	}

	// Both campaigns have ended a month later.
	f.clock.Set(testNow.Add(40 * 24 * time.Hour))
	if n, err := f.svc.RefreshCampaignStatuses(ctx); err != nil || n != 2 {
		t.Fatalf("after end: changed=%d err=%v", n, err)
	}
	if open, _ := f.store.Campaigns().ListOpenCampaigns(ctx); len(open) != 0 {
		t.Errorf("open campaigns left: %d", len(open))
	}
}

func TestCancelCampaign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.campaign(t, money.New(1_000))

	if _, err := f.svc.CancelCampaign(ctx, c.ID, uuid.New()); !errors.Is(err, domain.ErrNotManager) {
		t.Errorf("cancel by stranger: got %v", err)
	}
	out, err := f.svc.CancelCampaign(ctx, c.ID, f.manager)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != domain.CampaignCancelled {
		t.Errorf("status: %s", out.Status)
	}
	if _, err := f.svc.CancelCampaign(ctx, c.ID, f.manager); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("second cancel: got %v", err)
	}
	_, err = f.svc.CreateDonation(ctx, CreateDonationInput{Ledger: c.Ledger(), Amount: money.New(10), Method: domain.MethodCash})
	if !errors.Is(err, domain.ErrCampaignNotActive) {
		t.Errorf("donation to cancelled campaign: got %v", err)
	}
}

func TestCampaignNeedsFund(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateCampaign(context.Background(), CreateCampaignInput{
		FundOwnerID: uuid.New(),
		Name:        "Orphan",
		Goal:        money.New(100),
		StartDate:   testNow,
		EndDate:     testNow.Add(time.Hour),
		Actor:       f.manager,
	})
	if !errors.Is(err, domain.ErrInvalidCampaign) {
		t.Errorf("got %v, want ErrInvalidCampaign", err)
	}
}
