package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// New registers against the global prometheus registry, so only one
// Registry is ever constructed across this package's tests.
var registry = New()

func TestNewRegistersAllCollectors(t *testing.T) {
	assert.NotNil(t, registry.TickDuration)
	assert.NotNil(t, registry.Decisions)
	assert.NotNil(t, registry.OrdersOpened)
	assert.NotNil(t, registry.OrdersClosed)
	assert.NotNil(t, registry.ModeBalance)
	assert.NotNil(t, registry.CascadeLevel)
	assert.NotNil(t, registry.VPIN)
}

func TestIncTickDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		registry.IncTick()
		registry.IncTick()
	})
}

func TestCounterVecsAcceptLabelsWithoutPanicking(t *testing.T) {
	assert.NotPanics(t, func() {
		registry.Decisions.WithLabelValues("sniper", "long").Inc()
		registry.OrdersOpened.WithLabelValues("sniper").Inc()
		registry.OrdersClosed.WithLabelValues("sniper", "take_profit").Inc()
		registry.ModeBalance.WithLabelValues("sniper").Set(1000)
	})
}
