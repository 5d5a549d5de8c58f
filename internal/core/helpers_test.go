package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/meridian/controlplane/internal/config"
	"github.com/meridian/controlplane/internal/model"
	"github.com/meridian/controlplane/internal/store/memory"
)

// captureNotifier records delivered events for assertions.
type captureNotifier struct {
	mu     sync.Mutex
	events []Event
	fail   int
}

func (n *captureNotifier) Notify(_ context.Context, e Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail > 0 {
		n.fail--
		return context.DeadlineExceeded
	}
	n.events = append(n.events, e)
	return nil
}

func (n *captureNotifier) byType(typ string) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Event
	for _, e := range n.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	store    *memory.Store
	tiers    *config.Tiers
	cfg      *config.Config
	clock    *clock.Mock
	notifier *captureNotifier
	events   *Dispatcher
	orch     *Orchestrator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tiers, err := config.LoadTiers("")
	require.NoError(t, err)

	st := memory.New()
	notifier := &captureNotifier{}
	events := NewDispatcher(notifier, zerolog.Nop())
	t.Cleanup(events.Close)

	cfg := &config.Config{
		AllocateRetries:  2,
		AllocateBackoff:  time.Millisecond,
		ProvisionTimeout: time.Second,
	}
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))

	return &testEnv{
		store:    st,
		tiers:    tiers,
		cfg:      cfg,
		clock:    clk,
		notifier: notifier,
		events:   events,
		orch:     NewOrchestrator(st, tiers, cfg, LocalProvisioner{}, clk, events, zerolog.Nop()),
	}
}

// waitEvents blocks until n events of the given type have been
// delivered to the notifier.
func (e *testEnv) waitEvents(t *testing.T, typ string, n int) []Event {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(e.notifier.byType(typ)) >= n
	}, time.Second, 5*time.Millisecond)
	return e.notifier.byType(typ)
}

func (e *testEnv) activeTenant(t *testing.T, name string, tier model.Tier) *model.Tenant {
	t.Helper()
	tenant, err := e.orch.Tenants.Create(context.Background(), CreateParams{Name: name, Tier: tier})
	require.NoError(t, err)
	tenant, err = e.orch.Tenants.SetStatus(context.Background(), tenant.ID, model.StatusActive)
	require.NoError(t, err)
	return tenant
}
