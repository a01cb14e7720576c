package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/domain"
	"github.com/punchamoorthee/fundledger/internal/money"
)

// memStore is an in-memory UnitOfWork. A transaction holds the store mutex for
// its whole duration, which stands in for the ledger row lock, and restores a
// snapshot when fn fails.
type memStore struct {
	mu   sync.Mutex
	data *memData
	// failNextWrite makes the next ledger write fail, to exercise rollback.
	failNextWrite error
}

type memData struct {
	funds     map[uuid.UUID]*domain.Fund
	campaigns map[uuid.UUID]*domain.Campaign
	donations map[uuid.UUID]*domain.Donation
	expenses  map[uuid.UUID]*domain.Expense
	payos     map[int64]*domain.PayOSTransaction
}

func newMemStore() *memStore {
	return &memStore{data: &memData{
		funds:     map[uuid.UUID]*domain.Fund{},
		campaigns: map[uuid.UUID]*domain.Campaign{},
		donations: map[uuid.UUID]*domain.Donation{},
		expenses:  map[uuid.UUID]*domain.Expense{},
		payos:     map[int64]*domain.PayOSTransaction{},
	}}
}

func (d *memData) clone() *memData {
	c := &memData{
		funds:     make(map[uuid.UUID]*domain.Fund, len(d.funds)),
		campaigns: make(map[uuid.UUID]*domain.Campaign, len(d.campaigns)),
		donations: make(map[uuid.UUID]*domain.Donation, len(d.donations)),
		expenses:  make(map[uuid.UUID]*domain.Expense, len(d.expenses)),
		payos:     make(map[int64]*domain.PayOSTransaction, len(d.payos)),
	}
	for k, v := range d.funds {
		c.funds[k] = copyFund(v)
	}
	for k, v := range d.campaigns {
		c.campaigns[k] = copyCampaign(v)
	}
	for k, v := range d.donations {
		c.donations[k] = copyDonation(v)
	}
	for k, v := range d.expenses {
		c.expenses[k] = copyExpense(v)
	}
	for k, v := range d.payos {
		c.payos[k] = copyPayOS(v)
	}
	return c
}

func copyBank(b *domain.BankInfo) *domain.BankInfo {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

func copyFund(f *domain.Fund) *domain.Fund {
	c := *f
	c.ManagerIDs = append([]uuid.UUID(nil), f.ManagerIDs...)
	c.BankInfo = copyBank(f.BankInfo)
	return &c
}

func copyCampaign(x *domain.Campaign) *domain.Campaign {
	c := *x
	c.BankInfo = copyBank(x.BankInfo)
	return &c
}

func copyDonation(d *domain.Donation) *domain.Donation {
	c := *d
	c.ProofImages = append([]string{}, d.ProofImages...)
	return &c
}

func copyExpense(e *domain.Expense) *domain.Expense {
	c := *e
	c.ReceiptImages = append([]string{}, e.ReceiptImages...)
	return &c
}

func copyPayOS(t *domain.PayOSTransaction) *domain.PayOSTransaction {
	c := *t
	c.WebhookRawPayload = append([]byte(nil), t.WebhookRawPayload...)
	return &c
}

func (s *memStore) InTx(ctx context.Context, fn func(domain.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.data.clone()
	if err := fn(memRepos{s: s, tx: true}); err != nil {
		s.data = snap
		return err
	}
	return nil
}

func (s *memStore) Funds() domain.FundRepository { return memRepos{s: s} }
func (s *memStore) Campaigns() domain.CampaignRepository { return memRepos{s: s} }
func (s *memStore) Donations() domain.DonationRepository { return memRepos{s: s} }
func (s *memStore) Expenses() domain.ExpenseRepository { return memRepos{s: s} }
func (s *memStore) PayOS() domain.PayOSTransactionRepository { return memRepos{s: s} }
func (s *memStore) Ledgers() domain.LedgerRepository { return memRepos{s: s} }

// memRepos implements every repository interface. Outside a transaction each
// call takes the store mutex itself.
type memRepos struct {
	s  *memStore
	tx bool
}

func (r memRepos) Funds() domain.FundRepository { return r }
func (r memRepos) Campaigns() domain.CampaignRepository { return r }
func (r memRepos) Donations() domain.DonationRepository { return r }
func (r memRepos) Expenses() domain.ExpenseRepository { return r }
func (r memRepos) PayOS() domain.PayOSTransactionRepository { return r }
func (r memRepos) Ledgers() domain.LedgerRepository { return r }

func (r memRepos) acquire() (*memData, func()) {
	if r.tx {
		return r.s.data, func() {}
	}
	r.s.mu.Lock()
	return r.s.data, r.s.mu.Unlock
}

func (r memRepos) CreateFund(_ context.Context, f *domain.Fund) error {
	d, unlock := r.acquire()
	defer unlock()
	if f.FamilyTreeID != nil {
		for _, other := range d.funds {
			if other.DeletedAt == nil && other.FamilyTreeID != nil && *other.FamilyTreeID == *f.FamilyTreeID {
				return domain.ErrInvalidState
			}
		}
	}
	d.funds[f.ID] = copyFund(f)
	return nil
}

func (r memRepos) GetFund(_ context.Context, id uuid.UUID) (*domain.Fund, error) {
	d, unlock := r.acquire()
	defer unlock()
	f, ok := d.funds[id]
	if !ok || f.DeletedAt != nil {
		return nil, domain.ErrNotFound
	}
	return copyFund(f), nil
}

func (r memRepos) GetFundByFamilyTree(_ context.Context, tree uuid.UUID) (*domain.Fund, error) {
	d, unlock := r.acquire()
	defer unlock()
	for _, f := range d.funds {
		if f.DeletedAt == nil && f.FamilyTreeID != nil && *f.FamilyTreeID == tree {
			return copyFund(f), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r memRepos) UpdateFundDetails(_ context.Context, f *domain.Fund) error {
	d, unlock := r.acquire()
	defer unlock()
	cur, ok := d.funds[f.ID]
	if !ok || cur.DeletedAt != nil {
		return domain.ErrNotFound
	}
	cur.Name = f.Name
	cur.BankInfo = copyBank(f.BankInfo)
	cur.ManagerIDs = append([]uuid.UUID(nil), f.ManagerIDs...)
	cur.UpdatedAt = f.UpdatedAt
	return nil
}

func (r memRepos) SoftDeleteFund(_ context.Context, id uuid.UUID, now time.Time) error {
	d, unlock := r.acquire()
	defer unlock()
	f, ok := d.funds[id]
	if !ok || f.DeletedAt != nil {
		return domain.ErrNotFound
	}
	f.DeletedAt = &now
	return nil
}

func (r memRepos) CreateCampaign(_ context.Context, c *domain.Campaign) error {
	d, unlock := r.acquire()
	defer unlock()
	d.campaigns[c.ID] = copyCampaign(c)
	return nil
}

func (r memRepos) GetCampaign(_ context.Context, id uuid.UUID) (*domain.Campaign, error) {
	d, unlock := r.acquire()
	defer unlock()
	c, ok := d.campaigns[id]
	if !ok || c.DeletedAt != nil {
		return nil, domain.ErrNotFound
	}
	return copyCampaign(c), nil
}

func (r memRepos) UpdateCampaignStatus(_ context.Context, id uuid.UUID, status domain.CampaignStatus, now time.Time) error {
	d, unlock := r.acquire()
	defer unlock()
	c, ok := d.campaigns[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = now
	return nil
}

func (r memRepos) ListOpenCampaigns(context.Context) ([]*domain.Campaign, error) {
	d, unlock := r.acquire()
	defer unlock()
	var out []*domain.Campaign
	for _, c := range d.campaigns {
		if c.DeletedAt == nil && (c.Status == domain.CampaignUpcoming || c.Status == domain.CampaignActive) {
			out = append(out, copyCampaign(c))
		}
	}
	return out, nil
}

func (r memRepos) CreateDonation(_ context.Context, x *domain.Donation) error {
	d, unlock := r.acquire()
	defer unlock()
	if x.PayOrderCode != nil {
		for _, other := range d.donations {
			if other.PayOrderCode != nil && *other.PayOrderCode == *x.PayOrderCode {
				return domain.ErrRetryable
			}
		}
	}
	d.donations[x.ID] = copyDonation(x)
	return nil
}

func (r memRepos) GetDonation(_ context.Context, id uuid.UUID) (*domain.Donation, error) {
	d, unlock := r.acquire()
	defer unlock()
	x, ok := d.donations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyDonation(x), nil
}

func (r memRepos) LockDonation(ctx context.Context, id uuid.UUID) (*domain.Donation, error) {
	return r.GetDonation(ctx, id)
}

func (r memRepos) LockDonationByOrderCode(_ context.Context, code int64) (*domain.Donation, error) {
	d, unlock := r.acquire()
	defer unlock()
	for _, x := range d.donations {
		if x.PayOrderCode != nil && *x.PayOrderCode == code {
			return copyDonation(x), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r memRepos) SaveDonation(_ context.Context, x *domain.Donation) error {
	d, unlock := r.acquire()
	defer unlock()
	if _, ok := d.donations[x.ID]; !ok {
		return domain.ErrNotFound
	}
	d.donations[x.ID] = copyDonation(x)
	return nil
}

func (r memRepos) ListDonations(_ context.Context, f domain.ListFilter) ([]*domain.Donation, error) {
	d, unlock := r.acquire()
	defer unlock()
	out := []*domain.Donation{}
	for _, x := range d.donations {
		if x.Ledger == f.Ledger && (f.Status == "" || string(x.Status) == f.Status) {
			out = append(out, copyDonation(x))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f), nil
}

func page[T any](items []T, f domain.ListFilter) []T {
	if f.Offset >= len(items) {
		return []T{}
	}
	items = items[f.Offset:]
	if f.Limit < len(items) {
		items = items[:f.Limit]
	}
	return items
}

func (r memRepos) CreateExpense(_ context.Context, e *domain.Expense) error {
	d, unlock := r.acquire()
	defer unlock()
	d.expenses[e.ID] = copyExpense(e)
	return nil
}

func (r memRepos) GetExpense(_ context.Context, id uuid.UUID) (*domain.Expense, error) {
	d, unlock := r.acquire()
	defer unlock()
	e, ok := d.expenses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyExpense(e), nil
}

func (r memRepos) LockExpense(ctx context.Context, id uuid.UUID) (*domain.Expense, error) {
	return r.GetExpense(ctx, id)
}

func (r memRepos) SaveExpense(_ context.Context, e *domain.Expense) error {
	d, unlock := r.acquire()
	defer unlock()
	if _, ok := d.expenses[e.ID]; !ok {
		return domain.ErrNotFound
	}
	d.expenses[e.ID] = copyExpense(e)
	return nil
}

func (r memRepos) ListExpenses(_ context.Context, f domain.ListFilter) ([]*domain.Expense, error) {
	d, unlock := r.acquire()
	defer unlock()
	out := []*domain.Expense{}
	for _, e := range d.expenses {
		if e.Ledger == f.Ledger && (f.Status == "" || string(e.Status) == f.Status) {
			out = append(out, copyExpense(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f), nil
}

func (r memRepos) EnsurePayOSTransaction(_ context.Context, t *domain.PayOSTransaction) (bool, error) {
	d, unlock := r.acquire()
	defer unlock()
	if _, ok := d.payos[t.OrderCode]; ok {
		return false, nil
	}
	d.payos[t.OrderCode] = copyPayOS(t)
	return true, nil
}

func (r memRepos) GetPayOSTransaction(_ context.Context, code int64) (*domain.PayOSTransaction, error) {
	d, unlock := r.acquire()
	defer unlock()
	t, ok := d.payos[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyPayOS(t), nil
}

func (r memRepos) LockPayOSTransaction(ctx context.Context, code int64) (*domain.PayOSTransaction, error) {
	return r.GetPayOSTransaction(ctx, code)
}

func (r memRepos) SavePayOSTransaction(_ context.Context, t *domain.PayOSTransaction) error {
	d, unlock := r.acquire()
	defer unlock()
	if _, ok := d.payos[t.OrderCode]; !ok {
		return domain.ErrNotFound
	}
	d.payos[t.OrderCode] = copyPayOS(t)
	return nil
}

func (r memRepos) ledgerRow(d *memData, ref domain.LedgerRef) (*money.Money, *int64, error) {
	switch ref.Kind {
	case domain.LedgerFund:
		if f, ok := d.funds[ref.ID]; ok && f.DeletedAt == nil {
			return &f.Balance, &f.Version, nil
		}
	case domain.LedgerCampaign:
		if c, ok := d.campaigns[ref.ID]; ok && c.DeletedAt == nil {
			return &c.CurrentBalance, &c.Version, nil
		}
	}
	return nil, nil, fmt.Errorf("ledger %s: %w", ref, domain.ErrNotFound)
}

func (r memRepos) LockLedger(_ context.Context, ref domain.LedgerRef) (domain.LedgerState, error) {
	d, unlock := r.acquire()
	defer unlock()
	bal, ver, err := r.ledgerRow(d, ref)
	if err != nil {
		return domain.LedgerState{}, err
	}
	return domain.LedgerState{Ref: ref, Balance: *bal, Version: *ver}, nil
}

func (r memRepos) WriteLedgerBalance(_ context.Context, ref domain.LedgerRef, balance money.Money, expected int64, _ time.Time) error {
	d, unlock := r.acquire()
	defer unlock()
	if err := r.s.failNextWrite; err != nil {
		r.s.failNextWrite = nil
		return err
	}
	if balance.IsNegative() {
		return domain.ErrInsufficientBalance
	}
	bal, ver, err := r.ledgerRow(d, ref)
	if err != nil {
		return err
	}
	if *ver != expected {
		return domain.ErrConcurrentUpdate
	}
	*bal = balance
	*ver++
	return nil
}

func (r memRepos) LedgerBalance(_ context.Context, ref domain.LedgerRef) (money.Money, error) {
	d, unlock := r.acquire()
	defer unlock()
	bal, _, err := r.ledgerRow(d, ref)
	if err != nil {
		return money.Zero, err
	}
	return *bal, nil
}

// memBlobs records uploads and hands back predictable URLs.
type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newMemBlobs() *memBlobs { return &memBlobs{objects: map[string][]byte{}} }

func (b *memBlobs) UploadFile(_ context.Context, data []byte, folder, filename string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	key := folder + "/" + filename
	b.objects[key] = append([]byte(nil), data...)
	return "https://blob.test/" + key, nil
}

func (b *memBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

var errBlobDown = errors.New("blob store unavailable")
