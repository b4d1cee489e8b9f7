package bnpl_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/custody"
	"github.com/xraph/bnpl/mirror"
	"github.com/xraph/bnpl/store"
	"github.com/xraph/bnpl/store/memory"
	"github.com/xraph/bnpl/types"
)

// Fixed identities shared by all engine tests.
const (
	adminAddr    = types.Address("acct:admin")
	orchAddr     = types.Address("acct:orchestrator")
	detectorAddr = types.Address("acct:detector")
	poolAddr     = types.Address("acct:pool")
	aliceAddr    = types.Address("acct:alice")
	bobAddr      = types.Address("acct:bob")
	merchantAddr = types.Address("acct:merchant")
	lpAddr       = types.Address("acct:lp")
)

// fakeClock is a settable protocol clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// recordingSink captures mirrored events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []mirror.Event
}

func (s *recordingSink) Emit(_ context.Context, e mirror.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Events() []mirror.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]mirror.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) ByKind(k mirror.Kind) []mirror.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []mirror.Event
	for _, e := range s.events {
		if e.Kind() == k {
			out = append(out, e)
		}
	}
	return out
}

// fixture wires a full engine on memory backends.
type fixture struct {
	t     *testing.T
	p     *bnpl.Protocol
	asset *custody.MemoryAsset
	clock *fakeClock
	sink  *recordingSink
}

func newFixture(t *testing.T, opts ...bnpl.Option) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memory.New(), opts...)
}

// newFixtureWithStore is for tests that wrap the store, typically to
// inject write failures.
func newFixtureWithStore(t *testing.T, s store.Store, opts ...bnpl.Option) *fixture {
	t.Helper()

	f := &fixture{
		t:     t,
		asset: custody.NewMemoryAsset(poolAddr, "usd"),
		clock: newFakeClock(),
		sink:  &recordingSink{},
	}

	roster := bnpl.NewRoster(adminAddr, orchAddr, detectorAddr)
	all := append([]bnpl.Option{
		bnpl.WithClock(f.clock.Now),
		bnpl.WithMirror(f.sink),
	}, opts...)

	f.p = bnpl.New(s, f.asset, roster, poolAddr, all...)
	if err := f.p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(f.stop)

	return f
}

// stop shuts the engine down, draining the mirror buffer. Tests call it
// directly before asserting on delivered events; Stop is idempotent so
// the cleanup's second call is a no-op.
func (f *fixture) stop() {
	if err := f.p.Stop(); err != nil {
		f.t.Errorf("stop: %v", err)
	}
}

func (f *fixture) mint(addr types.Address, cents int64) {
	f.asset.Mint(addr, types.USD(cents))
}

func (f *fixture) deposit(cents int64) {
	f.t.Helper()
	f.mint(lpAddr, cents)
	if err := f.p.Liquidity().Deposit(context.Background(), lpAddr, types.USD(cents)); err != nil {
		f.t.Fatalf("deposit: %v", err)
	}
}

// enroll gives a user a limit and a passing KYC mark.
func (f *fixture) enroll(user types.Address, limitCents int64) {
	f.t.Helper()
	f.asset.SetKyc(user, true)
	if err := f.p.Credit().SetLimit(context.Background(), adminAddr, user, types.USD(limitCents)); err != nil {
		f.t.Fatalf("set limit: %v", err)
	}
}

func (f *fixture) balance(addr types.Address) int64 {
	f.t.Helper()
	bal, err := f.asset.BalanceOf(context.Background(), addr)
	if err != nil {
		f.t.Fatalf("balance: %v", err)
	}
	return bal.Amount
}

func (f *fixture) poolState() (total, outstanding, fees int64) {
	f.t.Helper()
	st, err := f.p.Liquidity().State(context.Background())
	if err != nil {
		f.t.Fatalf("pool state: %v", err)
	}
	return st.TotalLiquidity.Amount, st.OutstandingCredit.Amount, st.ProtocolFees.Amount
}
