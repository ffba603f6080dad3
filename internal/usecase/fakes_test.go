package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/NasaVasa/alerty/internal/domain"
)

type memStore struct {
	mu      sync.Mutex
	alerts  map[uint]*domain.Alert
	resets  int
	markErr error
}

func newMemStore(alerts ...domain.Alert) *memStore {
	s := &memStore{alerts: make(map[uint]*domain.Alert)}
	for i := range alerts {
		a := alerts[i]
		s.alerts[a.ID] = &a
	}
	return s
}

func (s *memStore) Get(ctx context.Context, alertID uint) (*domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[alertID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) List(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Alert
	for _, a := range s.alerts {
		if filter.Active != nil && a.Active != *filter.Active {
			continue
		}
		if filter.Triggered != nil && a.Triggered != *filter.Triggered {
			continue
		}
		if len(filter.Types) > 0 && !containsType(filter.Types, a.Type) {
			continue
		}
		if len(filter.Assets) > 0 && !containsString(filter.Assets, a.Asset) {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) ListByUser(ctx context.Context, userID uint) ([]domain.Alert, error) {
	all, _ := s.List(ctx, domain.AlertFilter{})
	var out []domain.Alert
	for _, a := range all {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) UpdateCurrentValue(ctx context.Context, alertID uint, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[alertID]
	if !ok {
		return domain.ErrNotFound
	}
	a.CurrentValue = &value
	return nil
}

func (s *memStore) MarkTriggered(ctx context.Context, alertID uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	a, ok := s.alerts[alertID]
	if !ok {
		return domain.ErrNotFound
	}
	a.Triggered = true
	a.LastTriggered = &at
	a.TriggerCount++
	return nil
}

func (s *memStore) ResetTriggered(ctx context.Context, alertID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[alertID]
	if !ok {
		return domain.ErrNotFound
	}
	a.Triggered = false
	s.resets++
	return nil
}

func (s *memStore) SetActive(ctx context.Context, userID uint, alertID uint, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[alertID]
	if !ok || a.UserID != userID {
		return domain.ErrNotFound
	}
	a.Active = active
	return nil
}

func (s *memStore) get(id uint) domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.alerts[id]
}

func containsType(types []domain.AlertType, t domain.AlertType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

type fakeUsers struct {
	mu     sync.Mutex
	byID   map[uint]*domain.User
	nextID uint
}

func newFakeUsers(users ...domain.User) *fakeUsers {
	f := &fakeUsers{byID: make(map[uint]*domain.User), nextID: 100}
	for i := range users {
		u := users[i]
		f.byID[u.ID] = &u
	}
	return f
}

func (f *fakeUsers) GetByTelegramID(ctx context.Context, telegramUserID int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.TelegramUserID == telegramUserID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUsers) GetByID(ctx context.Context, userID uint) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Create(ctx context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	user.ID = f.nextID
	cp := *user
	f.byID[user.ID] = &cp
	return nil
}

func (f *fakeUsers) SetWallet(ctx context.Context, userID uint, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.WalletAddress = address
	return nil
}

type fakeVenue struct {
	mu        sync.Mutex
	contexts  map[domain.MarketKind][]domain.MarketSnapshot
	accounts  map[string]*domain.AccountState
	balances  map[string][]domain.SpotBalance
	ctxCalls  int
	acctCalls int
}

func newFakeVenue() *fakeVenue {
	return &fakeVenue{
		contexts: make(map[domain.MarketKind][]domain.MarketSnapshot),
		accounts: make(map[string]*domain.AccountState),
		balances: make(map[string][]domain.SpotBalance),
	}
}

func (v *fakeVenue) AssetContexts(ctx context.Context, market domain.MarketKind) ([]domain.MarketSnapshot, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ctxCalls++
	out := make([]domain.MarketSnapshot, len(v.contexts[market]))
	copy(out, v.contexts[market])
	return out, nil
}

func (v *fakeVenue) AccountState(ctx context.Context, address string) (*domain.AccountState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.acctCalls++
	state, ok := v.accounts[address]
	if !ok {
		return &domain.AccountState{}, nil
	}
	cp := *state
	return &cp, nil
}

func (v *fakeVenue) SpotBalances(ctx context.Context, address string) ([]domain.SpotBalance, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[address], nil
}

func (v *fakeVenue) setPerp(snapshots ...domain.MarketSnapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.contexts[domain.MarketPerp] = snapshots
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, n domain.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type fakeSubscriber struct {
	mu         sync.Mutex
	active     map[string]bool
	subscribes map[string]int
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{active: make(map[string]bool), subscribes: make(map[string]int)}
}

func (f *fakeSubscriber) Subscribe(typ domain.SubscriptionType, identifier string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[string(typ)+":"+identifier] = true
	f.subscribes[string(typ)+":"+identifier]++
	return nil
}

func (f *fakeSubscriber) Unsubscribe(typ domain.SubscriptionType, identifier string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, string(typ)+":"+identifier)
	return nil
}

func (f *fakeSubscriber) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[key]
}

func (f *fakeSubscriber) subscribeCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes[key]
}
