package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/dossier/internal/engine"
	"github.com/Veraticus/dossier/internal/metrics"
	"github.com/Veraticus/dossier/internal/model"
	"github.com/Veraticus/dossier/internal/service"
	"github.com/Veraticus/dossier/internal/storage"
	"github.com/Veraticus/dossier/internal/testutil"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable clock shared by the registry and its sessions.
type fakeClock struct {
	now time.Time
	mu  sync.Mutex
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

func newTestConfig(clock *fakeClock) engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Clock = clock.Now
	return cfg
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)}
}

func ingest(s *engine.SessionAggregator, client string, ext model.Extraction) {
	s.AddFileExtraction(client, client, model.DocumentType(ext.Type), ext.Fields, ext.Filename)
}

func TestRegistry_GetOrCreate(t *testing.T) {
	r := NewRegistry(newTestConfig(newClock()))

	first := r.GetOrCreate("session-1", "owner")
	second := r.GetOrCreate("session-1", "someone else")
	assert.Same(t, first, second)
	assert.Equal(t, "owner", second.Owner())

	generated := r.GetOrCreate("", "owner")
	_, err := uuid.Parse(generated.ID())
	assert.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	got, ok := r.Get("session-1")
	require.True(t, ok)
	assert.Same(t, first, got)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_ConcurrentGetOrCreate(t *testing.T) {
	r := NewRegistry(newTestConfig(newClock()))

	var wg sync.WaitGroup
	results := make([]*engine.SessionAggregator, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.GetOrCreate("shared", "owner")
		}(i)
	}
	wg.Wait()

	for _, s := range results {
		assert.Same(t, results[0], s)
	}
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Close(t *testing.T) {
	r := NewRegistry(newTestConfig(newClock()))
	s := r.GetOrCreate("session-1", "owner")
	ingest(s, "João Silva", testutil.Payslip("Empresa A", 1000))

	closed, ok := r.Close("session-1")
	require.True(t, ok)
	assert.Same(t, s, closed)
	assert.False(t, closed.IsActive())

	// Closing does not consolidate or discard client state.
	assert.Len(t, closed.AllConsolidatedData(), 1)

	_, ok = r.Get("session-1")
	assert.False(t, ok)

	_, ok = r.Close("session-1")
	assert.False(t, ok)
}

func TestRegistry_CleanupExpired(t *testing.T) {
	clock := newClock()
	reg := prometheus.NewRegistry()
	r := NewRegistry(newTestConfig(clock), WithMetrics(metrics.NewCollector(reg)))

	old := r.GetOrCreate("old", "owner")
	clock.Advance(2 * time.Hour)
	r.GetOrCreate("fresh", "owner")
	clock.Advance(30 * time.Minute)

	removed := r.CleanupExpired(time.Hour)
	assert.Equal(t, []string{"old"}, removed)
	assert.False(t, old.IsActive())

	_, ok := r.Get("old")
	assert.False(t, ok)
	_, ok = r.Get("fresh")
	assert.True(t, ok)

	assert.Empty(t, r.CleanupExpired(time.Hour))

	expected := `
# HELP dossier_sessions_removed_total Sessions removed from the registry, by reason.
# TYPE dossier_sessions_removed_total counter
dossier_sessions_removed_total{reason="expired"} 1
# HELP dossier_sessions_active Sessions currently held in the registry.
# TYPE dossier_sessions_active gauge
dossier_sessions_active 1
`
	err := promtest.GatherAndCompare(reg, strings.NewReader(expected),
		"dossier_sessions_removed_total", "dossier_sessions_active")
	assert.NoError(t, err)

	problems, err := promtest.GatherAndLint(reg)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestRegistry_RecoveryFromStores(t *testing.T) {
	stores := map[string]service.SummaryStore{
		"sqlite": testutil.SetupSQLiteStore(t),
		"memory": storage.NewMemoryStorage(),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newClock()

			before := NewRegistry(newTestConfig(clock), WithStore(store))
			s := before.GetOrCreate("batch-"+name, "analyst")
			s.SetTotalFiles(5)
			ingest(s, "João Silva", testutil.Identity("João Silva", "123456789"))
			ingest(s, "Maria Costa", testutil.Payslip("Empresa B", "2.000,00"))
			s.IncrementError()
			require.NoError(t, before.Persist(ctx, s))

			// A new registry stands in for a restarted process.
			after := NewRegistry(newTestConfig(clock), WithStore(store))
			_, ok := after.Get("batch-" + name)
			require.False(t, ok)

			recovered, err := after.GetWithRecovery(ctx, "batch-"+name)
			require.NoError(t, err)

			summary := recovered.Summary()
			assert.True(t, summary.Recovered)
			assert.Equal(t, "analyst", summary.OwnerIdentity)
			assert.Equal(t, 5, summary.TotalFiles)
			assert.Equal(t, 2, summary.ProcessedFiles)
			assert.Equal(t, 1, summary.Errors)
			assert.Equal(t, 2, summary.ClientsCount)
			assert.Empty(t, recovered.AllConsolidatedData())

			again, err := after.GetWithRecovery(ctx, "batch-"+name)
			require.NoError(t, err)
			assert.Same(t, recovered, again)

			ingest(recovered, "Ana Lopes", testutil.Identity("Ana Lopes", "111222333"))
			assert.Equal(t, 3, recovered.Summary().ProcessedFiles)
		})
	}
}

func TestRegistry_GetWithRecoveryNotFound(t *testing.T) {
	ctx := context.Background()

	withStore := NewRegistry(newTestConfig(newClock()), WithStore(storage.NewMemoryStorage()))
	_, err := withStore.GetWithRecovery(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	withoutStore := NewRegistry(newTestConfig(newClock()))
	_, err = withoutStore.GetWithRecovery(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistry_ClosedSessionIsNotRecovered(t *testing.T) {
	ctx := context.Background()
	store := testutil.SetupSQLiteStore(t)

	before := NewRegistry(newTestConfig(newClock()), WithStore(store))
	s := before.GetOrCreate("batch-1", "analyst")
	ingest(s, "João Silva", testutil.Identity("João Silva", "123456789"))
	_, ok := before.Close("batch-1")
	require.True(t, ok)
	require.NoError(t, before.Persist(ctx, s))

	stored, err := store.GetSummary(ctx, "batch-1")
	require.NoError(t, err)
	require.False(t, stored.IsActive)

	after := NewRegistry(newTestConfig(newClock()), WithStore(store))
	_, err = after.GetWithRecovery(ctx, "batch-1")
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.NotErrorIs(t, err, ErrSessionNotFound)

	_, ok = after.Get("batch-1")
	assert.False(t, ok, "a closed session must not re-enter the registry")
	assert.Zero(t, after.Len())
}

type failingStore struct {
	service.SummaryStore
}

var errStoreDown = errors.New("store down")

func (failingStore) GetSummary(context.Context, string) (*model.SessionSummary, error) {
	return nil, errStoreDown
}

func (failingStore) SaveSummary(context.Context, model.SessionSummary) error {
	return errStoreDown
}

func TestRegistry_StoreFailures(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(newTestConfig(newClock()), WithStore(failingStore{}))

	_, err := r.GetWithRecovery(ctx, "any")
	require.Error(t, err)
	assert.ErrorIs(t, err, errStoreDown)
	assert.NotErrorIs(t, err, ErrSessionNotFound)

	s := r.GetOrCreate("s", "owner")
	err = r.Persist(ctx, s)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestRegistry_PersistWithoutStore(t *testing.T) {
	r := NewRegistry(newTestConfig(newClock()))
	s := r.GetOrCreate("s", "owner")
	assert.NoError(t, r.Persist(context.Background(), s))
}

func TestRegistry_Active(t *testing.T) {
	r := NewRegistry(newTestConfig(newClock()))
	r.GetOrCreate("b", "owner")
	r.GetOrCreate("a", "owner")

	active := r.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].SessionID)
	assert.Equal(t, "b", active[1].SessionID)
	assert.True(t, active[0].IsActive)
}
