package checkout

import (
	"testing"

	"eventreg/internal/events"

	"github.com/stretchr/testify/assert"
)

func TestQuote(t *testing.T) {
	t.Parallel()

	event := &events.Event{Fee: 20}
	tier := &events.TicketTier{Price: 50}
	workshop := events.SubEvent{Price: 10}
	masterclass := events.SubEvent{Price: 15, Standalone: true}
	supplied := 12.3
	negative := -4.0

	tests := []struct {
		name     string
		sel      *Selection
		credits  float64
		supplied *float64
		want     float64
	}{
		{name: "event fee", sel: &Selection{Event: event}, want: 20},
		{name: "tier replaces fee", sel: &Selection{Event: event, Tier: tier}, want: 50},
		{name: "tier plus sub-events minus credits", sel: &Selection{Event: event, Tier: tier, SubEvents: []events.SubEvent{workshop}}, credits: 5, want: 55},
		{name: "standalone sub-event only", sel: &Selection{Event: event, SubEvents: []events.SubEvent{masterclass}}, want: 15},
		{name: "fee plus non-standalone sub-event", sel: &Selection{Event: event, SubEvents: []events.SubEvent{workshop}}, want: 30},
		{name: "credits floor at zero", sel: &Selection{Event: event}, credits: 30, want: 0},
		{name: "rounded to cents", sel: &Selection{Event: &events.Event{Fee: 19.99}}, credits: 0.1, want: 19.89},
		{name: "supplied price wins", sel: &Selection{Event: event, Tier: tier}, credits: 5, supplied: &supplied, want: 12.3},
		{name: "supplied price floors at zero", sel: &Selection{Event: event}, supplied: &negative, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Quote(tt.sel, tt.credits, tt.supplied), 0.0001)
		})
	}
}
