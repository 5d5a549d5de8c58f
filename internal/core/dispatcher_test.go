package core

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_DeliversInOrder(t *testing.T) {
	notifier := &captureNotifier{}
	d := NewDispatcher(notifier, zerolog.Nop())

	d.Emit(Event{Type: EventQuotaAlert, TenantID: "t1"})
	d.Emit(Event{Type: EventScalingApplied, TenantID: "t2"})
	d.Close()

	require.Len(t, notifier.events, 2)
	assert.Equal(t, EventQuotaAlert, notifier.events[0].Type)
	assert.Equal(t, EventScalingApplied, notifier.events[1].Type)
	assert.False(t, notifier.events[0].At.IsZero(), "At is stamped on emit")
}

func TestDispatcher_RetriesFailedDelivery(t *testing.T) {
	notifier := &captureNotifier{fail: 2}
	d := NewDispatcher(notifier, zerolog.Nop())

	d.Emit(Event{Type: EventInvoiceGenerated, TenantID: "t1", At: time.Now()})
	d.Close()

	require.Len(t, notifier.events, 1)
	assert.Equal(t, EventInvoiceGenerated, notifier.events[0].Type)
}
