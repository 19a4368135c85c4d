package pressure

import (
	"math"
	"testing"

	"paranoia.ai/internal/sim/rng"
	"paranoia.ai/internal/sim/station"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		w    Weights
		want Mix
	}{
		{Weights{60, 10, 30}, Mix{0.6, 0.1, 0.3}},
		{Weights{20, 40, 40}, Mix{0.2, 0.4, 0.4}},
		{Weights{0, 0, 0}, Mix{1.0 / 3, 1.0 / 3, 1.0 / 3}},
		{Weights{0, 5, 0}, Mix{0, 1, 0}},
	}
	for _, tc := range cases {
		got := Normalize(tc.w)
		sum := got.Physical + got.Social + got.Epistemic
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("%+v: sum=%v", tc.w, sum)
		}
		if got.Physical < 0 || got.Social < 0 || got.Epistemic < 0 {
			t.Fatalf("%+v: negative share %+v", tc.w, got)
		}
		if math.Abs(got.Physical-tc.want.Physical) > 1e-9 || math.Abs(got.Social-tc.want.Social) > 1e-9 {
			t.Fatalf("%+v: got %+v want %+v", tc.w, got, tc.want)
		}
	}
}

func TestBandBoundaries(t *testing.T) {
	b := DefaultBands()
	cases := []struct {
		suspicion int
		want      Weights
	}{
		{0, b.LowWeights},
		{24, b.LowWeights},
		{25, b.MidWeights},
		{44, b.MidWeights},
		{45, b.HighWeights},
		{100, b.HighWeights},
	}
	for _, tc := range cases {
		if got := b.WeightsFor(tc.suspicion); got != tc.want {
			t.Fatalf("suspicion %d: got %+v want %+v", tc.suspicion, got, tc.want)
		}
	}
}

func TestPickChannel(t *testing.T) {
	m := Mix{Physical: 0.2, Social: 0.4, Epistemic: 0.4}
	for _, tc := range []struct {
		roll float64
		want Channel
	}{
		{0.1, Physical},
		{0.5, Social},
		{0.9, Epistemic},
		{0.2, Social},
		{0.0, Physical},
	} {
		if got := PickChannel(m, tc.roll); got != tc.want {
			t.Fatalf("roll %v: got %s want %s", tc.roll, got, tc.want)
		}
	}
}

func TestBandsValidate(t *testing.T) {
	b := DefaultBands()
	if err := b.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	b.Low = 50
	if err := b.Validate(); err == nil {
		t.Fatalf("expected error for inverted bands")
	}
	b = DefaultBands()
	b.MidWeights.Social = -1
	if err := b.Validate(); err == nil {
		t.Fatalf("expected error for negative weight")
	}
}

func TestChanceFor(t *testing.T) {
	c := GateConfig{Chance: 2, BoredomThreshold: 6, TensionThreshold: 6}
	cases := []struct {
		p    station.Pacing
		want int
	}{
		{station.Pacing{}, 2},
		{station.Pacing{Boredom: 6}, 5},
		{station.Pacing{Tension: 8}, 1},
		{station.Pacing{Boredom: 9, Tension: 9}, 4},
	}
	for _, tc := range cases {
		if got := c.ChanceFor(tc.p); got != tc.want {
			t.Fatalf("%+v: chance=%d want %d", tc.p, got, tc.want)
		}
	}
	c.Chance = 0
	if got := c.ChanceFor(station.Pacing{Tension: 9}); got != 1 {
		t.Fatalf("tension floor should be 1, got %d", got)
	}
}

func TestRouterGateConsumesCooldown(t *testing.T) {
	r := NewRouter(GateConfig{Chance: 0, Cooldown: 15, BoredomThreshold: 100, TensionThreshold: 100}, DefaultBands())
	g := rng.New(1)
	d := r.Route(10, 0, station.Pacing{}, g)
	if !d.Attempted || d.Passed {
		t.Fatalf("zero chance should attempt and fail: %+v", d)
	}
	if r.NextAllowed() != 25 {
		t.Fatalf("failed roll should consume the gate, next=%d", r.NextAllowed())
	}
	for tick := uint64(11); tick < 25; tick++ {
		if d := r.Route(tick, 0, station.Pacing{}, g); d.Attempted {
			t.Fatalf("tick %d: gate should be closed", tick)
		}
	}
	if d := r.Route(25, 0, station.Pacing{}, g); !d.Attempted {
		t.Fatalf("gate should reopen at 25")
	}
}

func TestRouterPassPicksChannel(t *testing.T) {
	r := NewRouter(GateConfig{Chance: 100, Cooldown: 1, BoredomThreshold: 100, TensionThreshold: 100}, DefaultBands())
	g := rng.New(7)
	seen := map[Channel]bool{}
	for tick := uint64(0); tick < 200; tick++ {
		d := r.Route(tick, 50, station.Pacing{}, g)
		if !d.Passed {
			t.Fatalf("tick %d: 100%% chance should pass", tick)
		}
		if d.Mix.Physical != 0.2 {
			t.Fatalf("suspicion 50 should use the high band, got %+v", d.Mix)
		}
		seen[d.Channel] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected all channels over 200 draws, saw %v", seen)
	}
}
