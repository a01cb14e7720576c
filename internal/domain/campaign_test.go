package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/money"
)

func newTestCampaign(t *testing.T, start, end time.Time) *Campaign {
	t.Helper()
	c, err := NewCampaign(NewCampaignParams{
		FundOwnerID: uuid.New(),
		ManagerID:   uuid.New(),
		Name:        "Ancestral hall roof",
		Goal:        money.New(10_000_000),
		StartDate:   start,
		EndDate:     end,
	}, testNow)
	if err != nil {
		t.Fatalf("NewCampaign: %v", err)
	}
	return c
}

func TestCampaignStatusAt(t *testing.T) {
	day := 24 * time.Hour
	c := newTestCampaign(t, testNow.Add(day), testNow.Add(10*day))
	if c.Status != CampaignUpcoming {
		t.Fatalf("initial status: got %s, want upcoming", c.Status)
	}
	if got := c.StatusAt(testNow.Add(2 * day)); got != CampaignActive {
		t.Errorf("during window: got %s", got)
	}
	if got := c.StatusAt(testNow.Add(11 * day)); got != CampaignCompleted {
		t.Errorf("after end: got %s", got)
	}
	c.CurrentBalance = money.New(10_000_000)
	if got := c.StatusAt(testNow.Add(2 * day)); got != CampaignCompleted {
		t.Errorf("goal reached: got %s", got)
	}
}

func TestCampaignGates(t *testing.T) {
	day := 24 * time.Hour
	c := newTestCampaign(t, testNow.Add(day), testNow.Add(10*day))
	if err := c.AcceptsDonations(testNow); !errors.Is(err, ErrCampaignNotActive) {
		t.Errorf("upcoming donation: got %v", err)
	}
	if err := c.AcceptsExpenses(testNow); !errors.Is(err, ErrCampaignNotActive) {
		t.Errorf("upcoming expense: got %v", err)
	}
	later := testNow.Add(2 * day)
	if err := c.AcceptsDonations(later); err != nil {
		t.Errorf("active donation: %v", err)
	}
	if err := c.Cancel(later); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := c.AcceptsDonations(later); !errors.Is(err, ErrCampaignNotActive) {
		t.Errorf("cancelled donation: got %v", err)
	}
	if err := c.AcceptsExpenses(later); err != nil {
		t.Errorf("cancelled campaign should still pay expenses: %v", err)
	}
	if err := c.Cancel(later); !errors.Is(err, ErrInvalidState) {
		t.Errorf("double cancel: got %v", err)
	}
}

func TestCampaignRefresh(t *testing.T) {
	day := 24 * time.Hour
	c := newTestCampaign(t, testNow.Add(-day), testNow.Add(day))
	if c.Status != CampaignActive {
		t.Fatalf("got %s, want active", c.Status)
	}
	if c.Refresh(testNow) {
		t.Error("refresh without change reported a change")
	}
	if !c.Refresh(testNow.Add(2 * day)) {
		t.Error("refresh after end did not report a change")
	}
	if c.Status != CampaignCompleted {
		t.Errorf("got %s, want completed", c.Status)
	}
}

func TestNewCampaignValidation(t *testing.T) {
	_, err := NewCampaign(NewCampaignParams{
		FundOwnerID: uuid.New(), ManagerID: uuid.New(), Name: "x",
		Goal: money.New(1), StartDate: testNow, EndDate: testNow,
	}, testNow)
	if !errors.Is(err, ErrInvalidCampaign) {
		t.Errorf("same start/end: got %v", err)
	}
	_, err = NewCampaign(NewCampaignParams{
		FundOwnerID: uuid.New(), ManagerID: uuid.New(), Name: "x",
		StartDate: testNow, EndDate: testNow.Add(time.Hour),
	}, testNow)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero goal: got %v", err)
	}
}
