package tests

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"ecocash/internal/domain"
	"ecocash/internal/ecocash"
	"ecocash/internal/redis"
	"ecocash/internal/repository"
)

// ──────────────────────────────────────────────
// MEMORY STORE
// ──────────────────────────────────────────────

// MemoryStore is an in-memory storefront with transactional semantics.
// WithinTx holds the store lock for the whole transaction and restores a
// snapshot when fn fails, which is enough to model conditional updates.
type MemoryStore struct {
	mu    sync.Mutex
	state storeState

	// Counters for verification
	DecrementCallCount int32
	ClearCartCallCount int32
	TxCount            int32

	// Error injection
	DecrementError error
}

type storeState struct {
	orders   map[string]*domain.Order
	notes    map[string][]string
	meta     map[string]map[string]string
	attempts map[string]*domain.PaymentAttempt
	stock    map[string]int
	carts    map[string]map[string]int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: storeState{
			orders:   make(map[string]*domain.Order),
			notes:    make(map[string][]string),
			meta:     make(map[string]map[string]string),
			attempts: make(map[string]*domain.PaymentAttempt),
			stock:    make(map[string]int),
			carts:    make(map[string]map[string]int),
		},
	}
}

// AddOrder adds an order to the store.
func (s *MemoryStore) AddOrder(order *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.orders[order.ID] = order
}

// SetStock sets the stock level of a product.
func (s *MemoryStore) SetStock(productID string, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.stock[productID] = qty
}

// AddToCart puts a product in a cart session.
func (s *MemoryStore) AddToCart(sessionID, productID string, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.carts[sessionID] == nil {
		s.state.carts[sessionID] = make(map[string]int)
	}
	s.state.carts[sessionID][productID] = qty
}

// AddAttempt stores an attempt directly (for test setup).
func (s *MemoryStore) AddAttempt(attempt *domain.PaymentAttempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.attempts[attempt.Reference] = attempt
}

// Stock returns the stock level of a product.
func (s *MemoryStore) Stock(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.stock[productID]
}

// CartSize returns the number of lines in a cart session.
func (s *MemoryStore) CartSize(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.carts[sessionID])
}

// OrderStatusOf returns the status of an order.
func (s *MemoryStore) OrderStatusOf(orderID string) domain.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.state.orders[orderID]; ok {
		return o.Status
	}
	return ""
}

// Notes returns the audit trail of an order.
func (s *MemoryStore) Notes(orderID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.state.notes[orderID]...)
}

// Meta returns a metadata value.
func (s *MemoryStore) Meta(orderID, key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.meta[orderID][key]
}

// Attempt returns a copy of an attempt, or nil.
func (s *MemoryStore) Attempt(reference string) *domain.PaymentAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.state.attempts[reference]
	if !ok {
		return nil
	}
	copy := *a
	return &copy
}

// CountAttempts returns the number of attempts.
func (s *MemoryStore) CountAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.attempts)
}

// OrderRepo returns a non-transactional order repository.
func (s *MemoryStore) OrderRepo() repository.OrderRepository {
	return &memOrders{s: s}
}

// AttemptRepo returns a non-transactional payment attempt repository.
func (s *MemoryStore) AttemptRepo() repository.PaymentAttemptRepository {
	return &memAttempts{s: s}
}

// WithinTx implements repository.Transactor.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	atomic.AddInt32(&s.TxCount, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(ctx, &memTx{s: s}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// lock takes the store lock unless the caller already holds it inside WithinTx.
func (s *MemoryStore) lock(inTx bool) func() {
	if inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (st storeState) clone() storeState {
	out := storeState{
		orders:   make(map[string]*domain.Order, len(st.orders)),
		notes:    make(map[string][]string, len(st.notes)),
		meta:     make(map[string]map[string]string, len(st.meta)),
		attempts: make(map[string]*domain.PaymentAttempt, len(st.attempts)),
		stock:    make(map[string]int, len(st.stock)),
		carts:    make(map[string]map[string]int, len(st.carts)),
	}
	for k, v := range st.orders {
		copy := *v
		out.orders[k] = &copy
	}
	for k, v := range st.notes {
		out.notes[k] = append([]string(nil), v...)
	}
	for k, v := range st.meta {
		m := make(map[string]string, len(v))
		for mk, mv := range v {
			m[mk] = mv
		}
		out.meta[k] = m
	}
	for k, v := range st.attempts {
		copy := *v
		out.attempts[k] = &copy
	}
	for k, v := range st.stock {
		out.stock[k] = v
	}
	for k, v := range st.carts {
		m := make(map[string]int, len(v))
		for mk, mv := range v {
			m[mk] = mv
		}
		out.carts[k] = m
	}
	return out
}

type memTx struct {
	s *MemoryStore
}

func (t *memTx) Orders() repository.OrderRepository {
	return &memOrders{s: t.s, inTx: true}
}

func (t *memTx) Attempts() repository.PaymentAttemptRepository {
	return &memAttempts{s: t.s, inTx: true}
}

func (t *memTx) Inventory() repository.InventoryRepository {
	return &memInventory{s: t.s, inTx: true}
}

func (t *memTx) Carts() repository.CartRepository {
	return &memCarts{s: t.s, inTx: true}
}

type memOrders struct {
	s    *MemoryStore
	inTx bool
}

func (r *memOrders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	defer r.s.lock(r.inTx)()
	order, ok := r.s.state.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *order
	copy.Items = append([]domain.LineItem(nil), order.Items...)
	return &copy, nil
}

func (r *memOrders) TransitionStatus(ctx context.Context, id string, from, to domain.OrderStatus, note string) (bool, error) {
	defer r.s.lock(r.inTx)()
	order, ok := r.s.state.orders[id]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	order.UpdatedAt = time.Now()
	if note != "" {
		r.s.state.notes[id] = append(r.s.state.notes[id], note)
	}
	return true, nil
}

func (r *memOrders) AddNote(ctx context.Context, id string, note string) error {
	defer r.s.lock(r.inTx)()
	r.s.state.notes[id] = append(r.s.state.notes[id], note)
	return nil
}

func (r *memOrders) GetMeta(ctx context.Context, id, key string) (string, error) {
	defer r.s.lock(r.inTx)()
	return r.s.state.meta[id][key], nil
}

func (r *memOrders) SetMeta(ctx context.Context, id, key, value string) error {
	defer r.s.lock(r.inTx)()
	if r.s.state.meta[id] == nil {
		r.s.state.meta[id] = make(map[string]string)
	}
	r.s.state.meta[id][key] = value
	return nil
}

type memAttempts struct {
	s    *MemoryStore
	inTx bool
}

func (r *memAttempts) Create(ctx context.Context, attempt *domain.PaymentAttempt) error {
	defer r.s.lock(r.inTx)()
	if _, exists := r.s.state.attempts[attempt.Reference]; exists {
		return repository.ErrDuplicateReference
	}
	copy := *attempt
	r.s.state.attempts[attempt.Reference] = &copy
	return nil
}

func (r *memAttempts) GetByReference(ctx context.Context, reference string) (*domain.PaymentAttempt, error) {
	defer r.s.lock(r.inTx)()
	a, ok := r.s.state.attempts[reference]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *a
	return &copy, nil
}

func (r *memAttempts) GetLatestByOrderID(ctx context.Context, orderID string) (*domain.PaymentAttempt, error) {
	defer r.s.lock(r.inTx)()
	var latest *domain.PaymentAttempt
	for _, a := range r.s.state.attempts {
		if a.OrderID != orderID {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	copy := *latest
	return &copy, nil
}

func (r *memAttempts) TransitionStatus(ctx context.Context, reference string, from, to domain.AttemptStatus, channel domain.Channel) (bool, error) {
	defer r.s.lock(r.inTx)()
	a, ok := r.s.state.attempts[reference]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	if channel != "" {
		a.ConfirmedVia = channel
	}
	a.UpdatedAt = time.Now()
	return true, nil
}

func (r *memAttempts) SaveProviderResponse(ctx context.Context, reference string, response json.RawMessage) error {
	defer r.s.lock(r.inTx)()
	a, ok := r.s.state.attempts[reference]
	if !ok {
		return repository.ErrNotFound
	}
	a.ProviderResponse = append(json.RawMessage(nil), response...)
	return nil
}

type memInventory struct {
	s    *MemoryStore
	inTx bool
}

func (r *memInventory) DecrementForOrder(ctx context.Context, orderID string) error {
	atomic.AddInt32(&r.s.DecrementCallCount, 1)
	if r.s.DecrementError != nil {
		return r.s.DecrementError
	}
	defer r.s.lock(r.inTx)()
	order, ok := r.s.state.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, item := range order.Items {
		r.s.state.stock[item.ProductID] -= item.Quantity
	}
	return nil
}

type memCarts struct {
	s    *MemoryStore
	inTx bool
}

func (r *memCarts) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	atomic.AddInt32(&r.s.ClearCartCallCount, 1)
	defer r.s.lock(r.inTx)()
	delete(r.s.state.carts, sessionID)
	return nil
}

// Ensure MemoryStore implements repository.Transactor.
var _ repository.Transactor = (*MemoryStore)(nil)

// ──────────────────────────────────────────────
// FAKE PROVIDER
// ──────────────────────────────────────────────

// FakeProvider is a scripted EcoCash API.
type FakeProvider struct {
	mu sync.Mutex

	// Control behavior
	InitiateError    error
	InitiateResponse *ecocash.Response
	OnInitiate       func(req ecocash.PaymentRequest)
	LookupStatuses   []domain.ConfirmationStatus // consumed in order; the last one repeats
	LookupError      error
	LookupDelay      time.Duration

	// Recorded calls
	InitiateRequests  []ecocash.PaymentRequest
	LookupRequests    []ecocash.LookupRequest
	InitiateCallCount int32
	LookupCallCount   int32
}

// NewFakeProvider creates a provider that accepts payments and reports PENDING.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		InitiateResponse: &ecocash.Response{StatusCode: 200, Body: json.RawMessage(`{"status":"PENDING"}`)},
		LookupStatuses:   []domain.ConfirmationStatus{domain.ConfirmationPending},
	}
}

// SetLookupStatuses scripts the lookup answers.
func (p *FakeProvider) SetLookupStatuses(statuses ...domain.ConfirmationStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LookupStatuses = statuses
}

func (p *FakeProvider) InitiatePayment(ctx context.Context, req ecocash.PaymentRequest) (*ecocash.Response, error) {
	atomic.AddInt32(&p.InitiateCallCount, 1)
	p.mu.Lock()
	p.InitiateRequests = append(p.InitiateRequests, req)
	hook := p.OnInitiate
	resp, err := p.InitiateResponse, p.InitiateError
	p.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	return resp, err
}

func (p *FakeProvider) LookupTransaction(ctx context.Context, req ecocash.LookupRequest) (*ecocash.LookupResult, error) {
	atomic.AddInt32(&p.LookupCallCount, 1)
	if p.LookupDelay > 0 {
		time.Sleep(p.LookupDelay)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.LookupRequests = append(p.LookupRequests, req)

	if p.LookupError != nil {
		return nil, p.LookupError
	}

	status := domain.ConfirmationPending
	if len(p.LookupStatuses) > 0 {
		status = p.LookupStatuses[0]
		if len(p.LookupStatuses) > 1 {
			p.LookupStatuses = p.LookupStatuses[1:]
		}
	}

	return &ecocash.LookupResult{
		Status:         status,
		ProviderStatus: string(status),
		Response:       ecocash.Response{StatusCode: 200},
	}, nil
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStore.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error

	// Force lock failure
	ForceAcquireFailure bool
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]time.Time),
	}
}

func (m *MockLockStore) AcquireLookupLock(ctx context.Context, orderID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	if m.ForceAcquireFailure {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:ecocash:lookup:" + orderID
	if expiry, exists := m.locks[key]; exists && time.Now().Before(expiry) {
		return false, nil
	}

	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockLockStore) ReleaseLookupLock(ctx context.Context, orderID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, "lock:ecocash:lookup:"+orderID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK CACHE STORE
// ──────────────────────────────────────────────

// MockCacheStore is a mock implementation of CacheStore.
type MockCacheStore struct {
	mu       sync.Mutex
	statuses map[string]redis.CachedStatus

	SetCallCount int32
}

// NewMockCacheStore creates a new mock cache store.
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{statuses: make(map[string]redis.CachedStatus)}
}

func (m *MockCacheStore) GetStatus(ctx context.Context, orderID string) (*redis.CachedStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[orderID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MockCacheStore) SetStatus(ctx context.Context, status *redis.CachedStatus) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[status.OrderID] = *status
	return nil
}

// ──────────────────────────────────────────────
// MOCK IDEMPOTENCY STORE
// ──────────────────────────────────────────────

// MockIdempotencyStore is a mock implementation of IdempotencyStore.
type MockIdempotencyStore struct {
	mu        sync.Mutex
	responses map[string][]byte
	inFlight  map[string]bool

	// Counters
	SaveCallCount    int32
	ReleaseCallCount int32

	// Error injection
	GetError error
}

// NewMockIdempotencyStore creates a new mock idempotency store.
func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		responses: make(map[string][]byte),
		inFlight:  make(map[string]bool),
	}
}

// HoldInFlight marks key as being processed by another request.
func (m *MockIdempotencyStore) HoldInFlight(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight[key] = true
}

func (m *MockIdempotencyStore) GetResponse(ctx context.Context, key string) ([]byte, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.responses[key]
	if !ok {
		return nil, nil
	}
	return data, nil
}

func (m *MockIdempotencyStore) SaveResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	atomic.AddInt32(&m.SaveCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[key] = append([]byte(nil), data...)
	return nil
}

func (m *MockIdempotencyStore) AcquireInFlight(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight[key] {
		return false, nil
	}
	m.inFlight[key] = true
	return true, nil
}

func (m *MockIdempotencyStore) ReleaseInFlight(ctx context.Context, key string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, key)
	return nil
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records published messages.
type MockPublisher struct {
	mu       sync.Mutex
	messages []PublishedMessage

	SendError error
}

// PublishedMessage is one recorded message.
type PublishedMessage struct {
	Body       string
	Attributes map[string]string
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) SendMessage(ctx context.Context, body string, attributes map[string]string) error {
	if m.SendError != nil {
		return m.SendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, PublishedMessage{Body: body, Attributes: attributes})
	return nil
}

// CountByType counts messages with the given event_type attribute.
func (m *MockPublisher) CountByType(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.Attributes["event_type"] == eventType {
			n++
		}
	}
	return n
}

// ──────────────────────────────────────────────
// FIXTURES
// ──────────────────────────────────────────────

// NewPendingOrder builds a pending order with one line item.
func NewPendingOrder(id string, total string, productID string, qty int) *domain.Order {
	return &domain.Order{
		ID:        id,
		Status:    domain.OrderStatusPending,
		Total:     decimal.RequireFromString(total),
		Currency:  "USD",
		Items:     []domain.LineItem{{ProductID: productID, Quantity: qty}},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// NewPendingAttempt builds a pending attempt for an order.
func NewPendingAttempt(orderID, reference string) *domain.PaymentAttempt {
	return &domain.PaymentAttempt{
		Reference: reference,
		OrderID:   orderID,
		MSISDN:    "263771234567",
		Amount:    decimal.RequireFromString("10.00"),
		Currency:  "USD",
		Reason:    "Order #" + orderID,
		Status:    domain.AttemptStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockTimeout = errors.New("mock: operation timeout")
)

// Ensure mocks implement the store interfaces.
var (
	_ redis.LockStoreInterface        = (*MockLockStore)(nil)
	_ redis.CacheStoreInterface       = (*MockCacheStore)(nil)
	_ redis.IdempotencyStoreInterface = (*MockIdempotencyStore)(nil)
)
