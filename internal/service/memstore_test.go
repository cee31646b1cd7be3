package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/repository"
)

// memState снимок всех таблиц. Транзакция работает с копией и подменяет оригинал при фиксации.
type memState struct {
	nextID       int64
	users        map[int64]models.UserCredit
	listings     map[int64]models.Listing
	orders       map[int64]models.Order
	history      []models.OrderStatusChange
	negotiations []models.Negotiation
	accounts     map[int64]models.Account
	entries      []models.LedgerEntry
	credits      []models.CreditHistory
	recharges    map[int64]models.Recharge
	reviews      []models.Review
	exchanges    map[int64]models.ExchangeRequest
}

func newMemState() *memState {
	return &memState{
		users:     map[int64]models.UserCredit{},
		listings:  map[int64]models.Listing{},
		orders:    map[int64]models.Order{},
		accounts:  map[int64]models.Account{},
		recharges: map[int64]models.Recharge{},
		exchanges: map[int64]models.ExchangeRequest{},
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		nextID:       s.nextID,
		users:        make(map[int64]models.UserCredit, len(s.users)),
		listings:     make(map[int64]models.Listing, len(s.listings)),
		orders:       make(map[int64]models.Order, len(s.orders)),
		history:      append([]models.OrderStatusChange(nil), s.history...),
		negotiations: append([]models.Negotiation(nil), s.negotiations...),
		accounts:     make(map[int64]models.Account, len(s.accounts)),
		entries:      append([]models.LedgerEntry(nil), s.entries...),
		credits:      append([]models.CreditHistory(nil), s.credits...),
		recharges:    make(map[int64]models.Recharge, len(s.recharges)),
		reviews:      append([]models.Review(nil), s.reviews...),
		exchanges:    make(map[int64]models.ExchangeRequest, len(s.exchanges)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.listings {
		c.listings[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.recharges {
		c.recharges[k] = v
	}
	for k, v := range s.exchanges {
		c.exchanges[k] = v
	}
	return c
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

// memStore транзакционное хранилище в памяти. Транзакции выполняются строго по одной.
type memStore struct {
	repository.Querier

	mu      sync.Mutex
	state   *memState
	now     func() time.Time
	commits int

	// beforeCAS вызывается внутри CompareAndSwapScore и может имитировать конкурентную запись.
	beforeCAS func(st *memState, userID int64)
}

type memTx struct {
	repository.Querier
	state *memState
}

func newMemStore() *memStore {
	return &memStore{state: newMemState(), now: time.Now}
}

func (m *memStore) WithinTx(_ context.Context, fn func(repository.Querier) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{state: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	m.commits++
	return nil
}

func (m *memStore) view(q repository.Querier) *memState {
	if tx, ok := q.(*memTx); ok {
		return tx.state
	}
	return m.state
}

func (m *memStore) addUser(score int64) int64 {
	id := m.state.id()
	m.state.users[id] = models.UserCredit{UserID: id, Score: decimal.NewFromInt(score)}
	return id
}

func (m *memStore) addListing(ownerID int64, price string, status models.ListingStatus) int64 {
	id := m.state.id()
	m.state.listings[id] = models.Listing{
		ID:        id,
		OwnerID:   ownerID,
		Title:     "listing",
		BasePrice: decimal.RequireFromString(price),
		Status:    status,
		CreatedAt: m.now(),
	}
	return id
}

func (m *memStore) setBalance(userID int64, amount string) {
	m.state.accounts[userID] = models.Account{UserID: userID, Balance: decimal.RequireFromString(amount), CreatedAt: m.now()}
}

func (m *memStore) balance(userID int64) (decimal.Decimal, bool) {
	acc, ok := m.state.accounts[userID]
	return acc.Balance, ok
}

func (m *memStore) order(id int64) models.Order {
	return m.state.orders[id]
}

func (m *memStore) waitingCount(orderID int64) int {
	n := 0
	for _, neg := range m.state.negotiations {
		if neg.OrderID == orderID && neg.Status == models.NegotiationWaitingResponse {
			n++
		}
	}
	return n
}

type memOrders struct{ s *memStore }

func (r memOrders) Create(_ context.Context, q repository.Querier, order *models.Order) error {
	st := r.s.view(q)
	for _, o := range st.orders {
		if o.BuyerID == order.BuyerID && o.ListingID == order.ListingID && !o.Status.IsTerminal() {
			return repository.ErrActiveOrderExists
		}
	}
	order.ID = st.id()
	order.CreatedAt = r.s.now()
	order.UpdatedAt = order.CreatedAt
	st.orders[order.ID] = *order
	return nil
}

func (r memOrders) GetByID(_ context.Context, q repository.Querier, id int64) (*models.Order, error) {
	o, ok := r.s.view(q).orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (r memOrders) GetForUpdate(ctx context.Context, q repository.Querier, id int64) (*models.Order, error) {
	return r.GetByID(ctx, q, id)
}

func (r memOrders) Update(_ context.Context, q repository.Querier, order *models.Order) error {
	st := r.s.view(q)
	if _, ok := st.orders[order.ID]; !ok {
		return repository.ErrOrderNotFound
	}
	order.UpdatedAt = r.s.now()
	st.orders[order.ID] = *order
	return nil
}

func (r memOrders) HasActiveOrder(_ context.Context, q repository.Querier, buyerID, listingID int64) (bool, error) {
	for _, o := range r.s.view(q).orders {
		if o.BuyerID == buyerID && o.ListingID == listingID && !o.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func (r memOrders) HasActiveForListing(_ context.Context, q repository.Querier, listingID int64) (bool, error) {
	for _, o := range r.s.view(q).orders {
		if o.ListingID == listingID && !o.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func (r memOrders) ListExpired(_ context.Context, q repository.Querier, now time.Time, limit int) ([]int64, error) {
	var expired []models.Order
	for _, o := range r.s.view(q).orders {
		if o.Status == models.OrderStatusPendingPayment && o.IsExpired(now) {
			expired = append(expired, o)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ExpireAt.Before(*expired[j].ExpireAt) })

	ids := make([]int64, 0, len(expired))
	for i, o := range expired {
		if i == limit {
			break
		}
		ids = append(ids, o.ID)
	}
	return ids, nil
}

func (r memOrders) ListExpiring(_ context.Context, q repository.Querier, now time.Time, within time.Duration) ([]models.Order, error) {
	var out []models.Order
	for _, o := range r.s.view(q).orders {
		if o.Status == models.OrderStatusPendingPayment && o.ExpireAt != nil &&
			!o.ExpireAt.Before(now) && !o.ExpireAt.After(now.Add(within)) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r memOrders) ListStalledNegotiations(_ context.Context, q repository.Querier, before time.Time, limit int) ([]models.Order, error) {
	st := r.s.view(q)
	var out []models.Order
	for _, n := range st.negotiations {
		if n.Status != models.NegotiationWaitingResponse || !n.CreatedAt.Before(before) {
			continue
		}
		if o, ok := st.orders[n.OrderID]; ok && o.Status == models.OrderStatusNegotiating {
			out = append(out, o)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r memOrders) ListByUser(_ context.Context, q repository.Querier, f models.OrderFilter) ([]models.Order, error) {
	var out []models.Order
	for _, o := range r.s.view(q).orders {
		role := o.RoleOf(f.UserID)
		if role == models.RoleNone || (f.Role != models.RoleNone && f.Role != role) {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

type memHistory struct{ s *memStore }

func (r memHistory) Append(_ context.Context, q repository.Querier, change *models.OrderStatusChange) error {
	st := r.s.view(q)
	change.ID = st.id()
	change.CreatedAt = r.s.now()
	st.history = append(st.history, *change)
	return nil
}

func (r memHistory) ListByOrder(_ context.Context, q repository.Querier, orderID int64) ([]models.OrderStatusChange, error) {
	var out []models.OrderStatusChange
	for _, h := range r.s.view(q).history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

type memListings struct{ s *memStore }

func (r memListings) GetByID(_ context.Context, q repository.Querier, id int64) (*models.Listing, error) {
	l, ok := r.s.view(q).listings[id]
	if !ok {
		return nil, repository.ErrListingNotFound
	}
	return &l, nil
}

func (r memListings) UpdateStatus(_ context.Context, q repository.Querier, id int64, status models.ListingStatus) error {
	st := r.s.view(q)
	l, ok := st.listings[id]
	if !ok {
		return repository.ErrListingNotFound
	}
	l.Status = status
	st.listings[id] = l
	return nil
}

type memNegotiations struct{ s *memStore }

func (r memNegotiations) Create(_ context.Context, q repository.Querier, n *models.Negotiation) error {
	st := r.s.view(q)
	if n.Status == models.NegotiationWaitingResponse {
		for _, existing := range st.negotiations {
			if existing.OrderID == n.OrderID && existing.Status == models.NegotiationWaitingResponse {
				return repository.ErrActiveNegotiation
			}
		}
	}
	n.ID = st.id()
	n.CreatedAt = r.s.now()
	n.UpdatedAt = n.CreatedAt
	st.negotiations = append(st.negotiations, *n)
	return nil
}

func (r memNegotiations) GetByID(_ context.Context, q repository.Querier, id int64) (*models.Negotiation, error) {
	for _, n := range r.s.view(q).negotiations {
		if n.ID == id {
			return &n, nil
		}
	}
	return nil, repository.ErrNegotiationNotFound
}

func (r memNegotiations) GetWaitingForUpdate(_ context.Context, q repository.Querier, orderID int64) (*models.Negotiation, error) {
	for _, n := range r.s.view(q).negotiations {
		if n.OrderID == orderID && n.Status == models.NegotiationWaitingResponse {
			return &n, nil
		}
	}
	return nil, repository.ErrNegotiationNotFound
}

func (r memNegotiations) UpdateStatus(_ context.Context, q repository.Querier, id int64, status models.NegotiationStatus) error {
	st := r.s.view(q)
	for i := range st.negotiations {
		if st.negotiations[i].ID == id {
			st.negotiations[i].Status = status
			st.negotiations[i].UpdatedAt = r.s.now()
			return nil
		}
	}
	return repository.ErrNegotiationNotFound
}

func (r memNegotiations) ListByOrder(_ context.Context, q repository.Querier, orderID int64) ([]models.Negotiation, error) {
	var out []models.Negotiation
	for _, n := range r.s.view(q).negotiations {
		if n.OrderID == orderID {
			out = append(out, n)
		}
	}
	return out, nil
}

type memLedger struct{ s *memStore }

func (r memLedger) EnsureAccount(_ context.Context, q repository.Querier, userID int64) error {
	st := r.s.view(q)
	if _, known := st.users[userID]; !known {
		return nil
	}
	if _, ok := st.accounts[userID]; !ok {
		st.accounts[userID] = models.Account{UserID: userID, Balance: decimal.Zero, CreatedAt: r.s.now()}
	}
	return nil
}

func (r memLedger) GetAccount(_ context.Context, q repository.Querier, userID int64) (*models.Account, error) {
	acc, ok := r.s.view(q).accounts[userID]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return &acc, nil
}

func (r memLedger) GetAccountForUpdate(ctx context.Context, q repository.Querier, userID int64) (*models.Account, error) {
	return r.GetAccount(ctx, q, userID)
}

func (r memLedger) SetBalance(_ context.Context, q repository.Querier, userID int64, balance decimal.Decimal) error {
	st := r.s.view(q)
	acc, ok := st.accounts[userID]
	if !ok {
		return repository.ErrAccountNotFound
	}
	acc.Balance = balance
	acc.UpdatedAt = r.s.now()
	st.accounts[userID] = acc
	return nil
}

func (r memLedger) AppendEntry(_ context.Context, q repository.Querier, entry *models.LedgerEntry) error {
	st := r.s.view(q)
	entry.ID = st.id()
	entry.CreatedAt = r.s.now()
	st.entries = append(st.entries, *entry)
	return nil
}

func (r memLedger) ListEntries(_ context.Context, q repository.Querier, userID int64, limit, offset int) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for _, e := range r.s.view(q).entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memCredit struct{ s *memStore }

func (r memCredit) GetCredit(_ context.Context, q repository.Querier, userID int64) (*models.UserCredit, error) {
	c, ok := r.s.view(q).users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &c, nil
}

func (r memCredit) CompareAndSwapScore(_ context.Context, q repository.Querier, userID, expectedVersion int64, score decimal.Decimal) (bool, error) {
	st := r.s.view(q)
	if r.s.beforeCAS != nil {
		r.s.beforeCAS(st, userID)
	}
	c, ok := st.users[userID]
	if !ok || c.Version != expectedVersion {
		return false, nil
	}
	c.Score = score
	c.Version++
	st.users[userID] = c
	return true, nil
}

func (r memCredit) AppendHistory(_ context.Context, q repository.Querier, h *models.CreditHistory) error {
	st := r.s.view(q)
	h.ID = st.id()
	h.CreatedAt = r.s.now()
	st.credits = append(st.credits, *h)
	return nil
}

func (r memCredit) ListHistory(_ context.Context, q repository.Querier, userID int64, limit, offset int) ([]models.CreditHistory, error) {
	var out []models.CreditHistory
	for _, h := range r.s.view(q).credits {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	return out, nil
}

type memRecharges struct{ s *memStore }

func (r memRecharges) Create(_ context.Context, q repository.Querier, recharge *models.Recharge) error {
	st := r.s.view(q)
	recharge.ID = st.id()
	recharge.CreatedAt = r.s.now()
	st.recharges[recharge.ID] = *recharge
	return nil
}

func (r memRecharges) GetForUpdate(_ context.Context, q repository.Querier, id int64) (*models.Recharge, error) {
	rc, ok := r.s.view(q).recharges[id]
	if !ok {
		return nil, repository.ErrRechargeNotFound
	}
	return &rc, nil
}

func (r memRecharges) MarkCompleted(_ context.Context, q repository.Querier, id int64, status string, at time.Time) error {
	st := r.s.view(q)
	rc := st.recharges[id]
	rc.Status = status
	rc.CompletedAt = &at
	st.recharges[id] = rc
	return nil
}

func (r memRecharges) FailStale(_ context.Context, q repository.Querier, before, now time.Time) (int64, error) {
	st := r.s.view(q)
	var n int64
	for id, rc := range st.recharges {
		if rc.Status == models.RechargeStatusProcessing && rc.CreatedAt.Before(before) {
			rc.Status = models.RechargeStatusFailed
			at := now
			rc.CompletedAt = &at
			st.recharges[id] = rc
			n++
		}
	}
	return n, nil
}

type memReviews struct{ s *memStore }

func (r memReviews) Create(_ context.Context, q repository.Querier, review *models.Review) error {
	st := r.s.view(q)
	for _, existing := range st.reviews {
		if existing.OrderID == review.OrderID && existing.ReviewerID == review.ReviewerID {
			return repository.ErrReviewExists
		}
	}
	review.ID = st.id()
	review.CreatedAt = r.s.now()
	st.reviews = append(st.reviews, *review)
	return nil
}

func (r memReviews) ExistsForOrder(_ context.Context, q repository.Querier, orderID, reviewerID int64) (bool, error) {
	for _, existing := range r.s.view(q).reviews {
		if existing.OrderID == orderID && existing.ReviewerID == reviewerID {
			return true, nil
		}
	}
	return false, nil
}

func (r memReviews) ListByReviewed(_ context.Context, q repository.Querier, reviewedID int64, limit, offset int) ([]models.Review, error) {
	var out []models.Review
	for _, existing := range r.s.view(q).reviews {
		if existing.ReviewedID == reviewedID {
			out = append(out, existing)
		}
	}
	return out, nil
}

func (r memReviews) GetForUpdate(_ context.Context, q repository.Querier, id int64) (*models.Review, error) {
	for _, existing := range r.s.view(q).reviews {
		if existing.ID == id {
			return &existing, nil
		}
	}
	return nil, repository.ErrReviewNotFound
}

func (r memReviews) SetReply(_ context.Context, q repository.Querier, id int64, reply string, at time.Time) error {
	st := r.s.view(q)
	for i := range st.reviews {
		if st.reviews[i].ID == id {
			st.reviews[i].SellerReply = &reply
			st.reviews[i].RepliedAt = &at
			return nil
		}
	}
	return repository.ErrReviewNotFound
}

func (r memReviews) Delete(_ context.Context, q repository.Querier, id int64) error {
	st := r.s.view(q)
	for i := range st.reviews {
		if st.reviews[i].ID == id {
			st.reviews = append(st.reviews[:i:i], st.reviews[i+1:]...)
			return nil
		}
	}
	return repository.ErrReviewNotFound
}

type memExchanges struct{ s *memStore }

func (r memExchanges) Create(_ context.Context, q repository.Querier, exchange *models.ExchangeRequest) error {
	st := r.s.view(q)
	for _, e := range st.exchanges {
		if e.OfferListingID == exchange.OfferListingID && e.Status == models.ExchangePending {
			return repository.ErrPendingExchange
		}
	}
	exchange.ID = st.id()
	exchange.CreatedAt = r.s.now()
	exchange.UpdatedAt = exchange.CreatedAt
	st.exchanges[exchange.ID] = *exchange
	return nil
}

func (r memExchanges) GetForUpdate(_ context.Context, q repository.Querier, id int64) (*models.ExchangeRequest, error) {
	e, ok := r.s.view(q).exchanges[id]
	if !ok {
		return nil, repository.ErrExchangeNotFound
	}
	return &e, nil
}

func (r memExchanges) HasPending(_ context.Context, q repository.Querier, offerListingID int64) (bool, error) {
	for _, e := range r.s.view(q).exchanges {
		if e.OfferListingID == offerListingID && e.Status == models.ExchangePending {
			return true, nil
		}
	}
	return false, nil
}

func (r memExchanges) UpdateStatus(_ context.Context, q repository.Querier, id int64, status models.ExchangeStatus) error {
	st := r.s.view(q)
	e, ok := st.exchanges[id]
	if !ok {
		return repository.ErrExchangeNotFound
	}
	e.Status = status
	e.UpdatedAt = r.s.now()
	st.exchanges[id] = e
	return nil
}

func (r memExchanges) ListByUser(_ context.Context, q repository.Querier, userID int64, limit, offset int) ([]models.ExchangeRequest, error) {
	var out []models.ExchangeRequest
	for _, e := range r.s.view(q).exchanges {
		if e.IsParticipant(userID) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
