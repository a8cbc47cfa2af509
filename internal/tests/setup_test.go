package tests

import (
	"time"

	internalRedis "ecocash/internal/redis"
	"ecocash/internal/service"
)

type harness struct {
	store      *MemoryStore
	provider   *FakeProvider
	locks      *MockLockStore
	cache      *MockCacheStore
	publisher  *MockPublisher
	cfg        service.GatewayConfig
	initiator  *service.InitiatorService
	reconciler *service.ReconcilerService
}

type harnessOption func(*harnessOptions)

type harnessOptions struct {
	withLocks       bool
	withCache       bool
	verifyCallbacks bool
	disabled        bool
	references      *service.ReferenceGenerator
}

func withLocks() harnessOption { return func(o *harnessOptions) { o.withLocks = true } }
func withCache() harnessOption { return func(o *harnessOptions) { o.withCache = true } }
func withVerifyCallbacks() harnessOption { return func(o *harnessOptions) { o.verifyCallbacks = true } }
func withGatewayDisabled() harnessOption { return func(o *harnessOptions) { o.disabled = true } }

func withReferences(g *service.ReferenceGenerator) harnessOption {
	return func(o *harnessOptions) { o.references = g }
}

func testGatewayConfig() service.GatewayConfig {
	return service.GatewayConfig{
		Enabled:          true,
		Title:            "EcoCash",
		Sandbox:          true,
		Currency:         "USD",
		WaitingURL:       "https://shop.example/checkout/ecocash-waiting",
		OrderReceivedURL: "https://shop.example/checkout/order-received",
		OrderHistoryURL:  "https://shop.example/my-account/orders",
		Poll: service.PollSettings{
			InitialDelay: 2 * time.Second,
			Interval:     3 * time.Second,
			MaxDuration:  3 * time.Minute,
		},
	}
}

func newHarness(opts ...harnessOption) *harness {
	var o harnessOptions
	for _, opt := range opts {
		opt(&o)
	}

	h := &harness{
		store:     NewMemoryStore(),
		provider:  NewFakeProvider(),
		locks:     NewMockLockStore(),
		cache:     NewMockCacheStore(),
		publisher: NewMockPublisher(),
		cfg:       testGatewayConfig(),
	}
	h.cfg.VerifyCallbacks = o.verifyCallbacks
	h.cfg.Enabled = !o.disabled

	var lockStore internalRedis.LockStoreInterface
	if o.withLocks {
		lockStore = h.locks
	}
	var cacheStore internalRedis.CacheStoreInterface
	if o.withCache {
		cacheStore = h.cache
	}

	notifications := service.NewNotificationService(h.publisher)
	h.initiator = service.NewInitiatorService(h.cfg, h.store.OrderRepo(), h.store, h.provider, o.references)
	h.reconciler = service.NewReconcilerService(
		h.cfg, h.store.OrderRepo(), h.store.AttemptRepo(), h.store, h.provider, lockStore, cacheStore, notifications,
	)

	return h
}
