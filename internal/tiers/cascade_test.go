package tiers

import (
	"testing"
	"time"

	"eventreg/internal/events"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func tier(name string, price float64, start, end *time.Time) events.TicketTier {
	return events.TicketTier{Name: name, Price: price, StartDate: start, EndDate: end}
}

func names(ds []Decision) []string {
	var out []string
	for _, d := range ds {
		if d.Purchasable {
			out = append(out, d.Tier.Name)
		}
	}
	return out
}

func TestCascade(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		states   []State
		audience string
		want     []string
	}{
		{
			name: "regular opens early once early bird is exhausted",
			states: []State{
				{Tier: tier("Early", 10, nil, nil), Available: 0},
				{Tier: tier("Regular", 20, at(48*time.Hour), nil), Available: 5},
			},
			want: []string{"Regular"},
		},
		{
			name: "regular stays closed while early bird has seats",
			states: []State{
				{Tier: tier("Early", 10, nil, nil), Available: 1},
				{Tier: tier("Regular", 20, at(48*time.Hour), nil), Available: 5},
			},
			want: []string{"Early"},
		},
		{
			name: "cascade is transitive",
			states: []State{
				{Tier: tier("Early", 10, nil, nil), Available: 0},
				{Tier: tier("Regular", 20, at(24*time.Hour), nil), Available: 0},
				{Tier: tier("Late", 30, at(72*time.Hour), nil), Available: 3},
			},
			want: []string{"Late"},
		},
		{
			name: "cascade only skips one step per exhausted tier",
			states: []State{
				{Tier: tier("Early", 10, nil, nil), Available: 0},
				{Tier: tier("Regular", 20, at(24*time.Hour), nil), Available: 2},
				{Tier: tier("Late", 30, at(72*time.Hour), nil), Available: 3},
			},
			want: []string{"Regular"},
		},
		{
			name: "end date is never waived",
			states: []State{
				{Tier: tier("Early", 10, nil, nil), Available: 0},
				{Tier: tier("Regular", 20, at(-48*time.Hour), at(-time.Hour)), Available: 5},
			},
			want: nil,
		},
		{
			name: "window bounds are inclusive",
			states: []State{
				{Tier: tier("Flash", 5, at(0), at(0)), Available: 1},
			},
			want: []string{"Flash"},
		},
		{
			name: "audience filter",
			states: []State{
				{Tier: events.TicketTier{Name: "Student", TargetAudience: "students"}, Available: 4},
				{Tier: events.TicketTier{Name: "General", TargetAudience: "all"}, Available: 4},
				{Tier: events.TicketTier{Name: "Open"}, Available: 4},
			},
			audience: "public",
			want:     []string{"General", "Open"},
		},
		{
			name: "exhausted tier outside the caller's audience still opens the next one",
			states: []State{
				{Tier: events.TicketTier{Name: "Member Early", TargetAudience: "members"}, Available: 0},
				{Tier: tier("Regular", 20, at(time.Hour), nil), Available: 2},
			},
			audience: "public",
			want:     []string{"Regular"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(Cascade(tt.states, now, tt.audience)))
		})
	}
}

func TestCascadeReasons(t *testing.T) {
	t.Parallel()

	ds := Cascade([]State{
		{Tier: tier("Early", 10, nil, nil), Available: 0},
		{Tier: tier("Regular", 20, at(time.Hour), nil), Available: 5},
		{Tier: tier("Late", 30, at(2*time.Hour), nil), Available: 5},
		{Tier: tier("Past", 40, nil, at(-time.Minute)), Available: 5},
	}, now, "")

	assert.Equal(t, ReasonSoldOut, ds[0].Reason)
	assert.True(t, ds[1].Purchasable)
	assert.True(t, ds[1].OpenedEarly)
	assert.Equal(t, ReasonNotStarted, ds[2].Reason)
	assert.Equal(t, ReasonEnded, ds[3].Reason)
}
