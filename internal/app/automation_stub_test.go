package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rroihans/dompetku-sub003/internal/domain"
	"github.com/rroihans/dompetku-sub003/internal/ledger"
	"github.com/rroihans/dompetku-sub003/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type auditEntry struct {
	level   string
	module  string
	message string
}

// memRepo is an in-memory Repository for engine tests.
type memRepo struct {
	accounts  map[uuid.UUID]*domain.Account
	schedules map[uuid.UUID]*domain.RecurringSchedule
	txns      []domain.Transaction
	settings  map[string]string
	budgets   []domain.Budget
	audit     []auditEntry
	snapshots map[string]int64

	findFeeErr       error
	findInterestErr  error
	findSchedulesErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		accounts:  map[uuid.UUID]*domain.Account{},
		schedules: map[uuid.UUID]*domain.RecurringSchedule{},
		settings:  map[string]string{},
		snapshots: map[string]int64{},
	}
}

func (m *memRepo) addAccount(a *domain.Account) *domain.Account {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	m.accounts[a.ID] = a
	return a
}

func (m *memRepo) addSchedule(s *domain.RecurringSchedule) *domain.RecurringSchedule {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	m.schedules[s.ID] = s
	return s
}

func (m *memRepo) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *memRepo) sortedAccounts(match func(*domain.Account) bool) []domain.Account {
	var out []domain.Account
	for _, a := range m.accounts {
		if match(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func isAutomatable(class domain.AccountClass) bool {
	return class == domain.ClassBank || class == domain.ClassEWallet
}

func (m *memRepo) FindFeeAccounts(ctx context.Context) ([]domain.Account, error) {
	if m.findFeeErr != nil {
		return nil, m.findFeeErr
	}
	return m.sortedAccounts(func(a *domain.Account) bool {
		return isAutomatable(a.Class) && a.AdminFee != nil && a.AdminFee.Enabled && a.AdminFee.Amount > 0
	}), nil
}

func (m *memRepo) FindInterestAccounts(ctx context.Context) ([]domain.Account, error) {
	if m.findInterestErr != nil {
		return nil, m.findInterestErr
	}
	return m.sortedAccounts(func(a *domain.Account) bool {
		return isAutomatable(a.Class) && a.Interest != nil && a.Interest.Enabled && len(a.Interest.Tiers) > 0
	}), nil
}

func (m *memRepo) EnsureCategoryAccount(ctx context.Context, class domain.AccountClass, name string) (*domain.Account, error) {
	for _, a := range m.accounts {
		if a.Class == class && a.Name == name {
			copied := *a
			return &copied, nil
		}
	}
	created := m.addAccount(&domain.Account{Name: name, Class: class})
	copied := *created
	return &copied, nil
}

func (m *memRepo) StampFeePeriod(ctx context.Context, accountID uuid.UUID, period domain.Period) error {
	a, ok := m.accounts[accountID]
	if !ok {
		return store.ErrAccountNotFound
	}
	if a.AdminFee == nil {
		a.AdminFee = &domain.AdminFeeConfig{}
	}
	p := period
	a.AdminFee.LastChargedPeriod = &p
	return nil
}

func (m *memRepo) StampInterestPeriod(ctx context.Context, accountID uuid.UUID, period domain.Period) error {
	a, ok := m.accounts[accountID]
	if !ok {
		return store.ErrAccountNotFound
	}
	if a.Interest == nil {
		a.Interest = &domain.InterestConfig{}
	}
	p := period
	a.Interest.LastCreditedPeriod = &p
	return nil
}

func (m *memRepo) FindDueSchedules(ctx context.Context, asOf time.Time) ([]domain.RecurringSchedule, error) {
	if m.findSchedulesErr != nil {
		return nil, m.findSchedulesErr
	}
	var out []domain.RecurringSchedule
	for _, s := range m.schedules {
		if s.Active && !s.NextDue.After(asOf) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextDue.Before(out[j].NextDue) })
	return out, nil
}

func (m *memRepo) UpdateSchedule(ctx context.Context, s *domain.RecurringSchedule) error {
	stored, ok := m.schedules[s.ID]
	if !ok {
		return store.ErrScheduleNotFound
	}
	*stored = *s
	return nil
}

func (m *memRepo) ListAccountTransactions(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, txn := range m.txns {
		if txn.BalanceDelta(accountID) == 0 {
			continue
		}
		if txn.Date.Before(from) || !txn.Date.Before(to) {
			continue
		}
		out = append(out, txn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memRepo) SumTransactionDeltaSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int64, error) {
	var total int64
	for _, txn := range m.txns {
		if !txn.Date.Before(since) {
			total += txn.BalanceDelta(accountID)
		}
	}
	return total, nil
}

func (m *memRepo) SumCategorySpend(ctx context.Context, category string, from, to time.Time) (int64, error) {
	var total int64
	for _, txn := range m.txns {
		if txn.Category != category || txn.Date.Before(from) || !txn.Date.Before(to) {
			continue
		}
		debit, ok := m.accounts[txn.DebitAccountID]
		if ok && debit.Class == domain.ClassExpense {
			total += txn.Amount
		}
	}
	return total, nil
}

func (m *memRepo) ListBudgets(ctx context.Context, period domain.Period) ([]domain.Budget, error) {
	var out []domain.Budget
	for _, b := range m.budgets {
		if b.Year == period.Year && b.Month == period.Month {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memRepo) GetSetting(ctx context.Context, key string) (string, error) {
	value, ok := m.settings[key]
	if !ok {
		return "", store.ErrSettingNotFound
	}
	return value, nil
}

func (m *memRepo) UpsertSetting(ctx context.Context, key, value string) error {
	m.settings[key] = value
	return nil
}

func (m *memRepo) AppendAuditLog(ctx context.Context, level, module, message string, detail map[string]any) error {
	m.audit = append(m.audit, auditEntry{level: level, module: module, message: message})
	return nil
}

func (m *memRepo) SumBalancesByClass(ctx context.Context, classes []domain.AccountClass) (int64, error) {
	var total int64
	for _, a := range m.accounts {
		for _, c := range classes {
			if a.Class == c {
				total += a.Balance
			}
		}
	}
	return total, nil
}

func (m *memRepo) SaveNetWorthSnapshot(ctx context.Context, date time.Time, netWorth int64) error {
	m.snapshots[date.Format("2006-01-02")] = netWorth
	return nil
}

// memLedger is an in-memory Ledger that applies balance effects to the
// memRepo's accounts and honors idempotency keys, mirroring the real
// poster's contract.
type memLedger struct {
	repo    *memRepo
	byKey   map[string]*domain.Transaction
	posts   []domain.Transaction
	failFor map[uuid.UUID]error
}

func newMemLedger(repo *memRepo) *memLedger {
	return &memLedger{
		repo:    repo,
		byKey:   map[string]*domain.Transaction{},
		failFor: map[uuid.UUID]error{},
	}
}

func (l *memLedger) Post(ctx context.Context, req ledger.PostRequest) (*ledger.PostResult, error) {
	if req.Amount <= 0 {
		return nil, &domain.ValidationError{Reason: "amount must be positive"}
	}
	if req.DebitAccountID == req.CreditAccountID {
		return nil, &domain.ValidationError{Reason: "accounts must differ"}
	}
	if err, ok := l.failFor[req.DebitAccountID]; ok {
		return nil, err
	}
	if err, ok := l.failFor[req.CreditAccountID]; ok {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		if existing, ok := l.byKey[req.IdempotencyKey]; ok {
			return &ledger.PostResult{Transaction: existing, Duplicate: true}, nil
		}
	}

	debit, ok := l.repo.accounts[req.DebitAccountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	credit, ok := l.repo.accounts[req.CreditAccountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}

	txn := domain.Transaction{
		ID:              uuid.New(),
		Amount:          req.Amount,
		DebitAccountID:  req.DebitAccountID,
		CreditAccountID: req.CreditAccountID,
		Date:            req.Date,
		Description:     req.Description,
		Category:        req.Category,
		CreatedAt:       time.Now(),
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		txn.IdempotencyKey = &key
	}

	debit.Balance += req.Amount
	credit.Balance -= req.Amount
	l.repo.txns = append(l.repo.txns, txn)
	l.posts = append(l.posts, txn)
	if req.IdempotencyKey != "" {
		l.byKey[req.IdempotencyKey] = &txn
	}
	return &ledger.PostResult{Transaction: &txn}, nil
}

func (l *memLedger) postsFor(accountID uuid.UUID) []domain.Transaction {
	var out []domain.Transaction
	for _, txn := range l.posts {
		if txn.BalanceDelta(accountID) != 0 {
			out = append(out, txn)
		}
	}
	return out
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	events []string
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.events = append(p.events, fmt.Sprintf("%s/%s", exchange, routingKey))
	return nil
}
