package runner

import (
	"math/rand"
	"testing"
	"time"
)

func TestPlanCycleSizes(t *testing.T) {
	tests := []struct {
		name      string
		mode      Mode
		remaining int
		maxConc   int
		want      int
	}{
		{"normal single", ModeNormal, 10, 4, 1},
		{"burst single", ModeBurst, 10, 4, 1},
		{"peak full batch", ModePeak, 10, 4, 4},
		{"peak tail", ModePeak, 2, 4, 2},
		{"stress full batch", ModeStress, 100, 50, 50},
		{"stress tail", ModeStress, 1, 50, 1},
		{"normal last", ModeNormal, 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rnd := rand.New(rand.NewSource(1))
			if got := planCycle(tt.mode, tt.remaining, tt.maxConc, rnd); got != tt.want {
				t.Fatalf("planCycle() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPlanCyclePeakSequence(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	remaining := 10
	var sizes []int
	for remaining > 0 {
		n := planCycle(ModePeak, remaining, 4, rnd)
		sizes = append(sizes, n)
		remaining -= n
	}
	if len(sizes) != 3 || sizes[0] != 4 || sizes[1] != 4 || sizes[2] != 2 {
		t.Fatalf("expected cycles [4 4 2], got %v", sizes)
	}
}

func TestPlanCycleRealisticGuard(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		if got := planCycle(ModeRealistic, 2, 10, rnd); got != 1 {
			t.Fatalf("remaining=2 must never batch, got %d", got)
		}
	}
}

func TestPlanCycleRealisticBatchShare(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	const draws = 20000
	batches := 0
	for i := 0; i < draws; i++ {
		switch got := planCycle(ModeRealistic, 100, 10, rnd); got {
		case 3:
			batches++
		case 1:
		default:
			t.Fatalf("unexpected realistic cycle size %d", got)
		}
	}
	share := float64(batches) / draws
	if share < 0.28 || share > 0.32 {
		t.Fatalf("expected ~30%% batches, got %.3f", share)
	}
}

func TestPlanCycleRealisticCappedByConcurrency(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		if got := planCycle(ModeRealistic, 50, 2, rnd); got > 2 {
			t.Fatalf("cycle of %d exceeds maxConcurrency 2", got)
		}
	}
}

func TestPlanCycleRealisticConsumesDraw(t *testing.T) {
	a := rand.New(rand.NewSource(9))
	b := rand.New(rand.NewSource(9))
	planCycle(ModeRealistic, 1, 5, a)
	planCycle(ModeRealistic, 50, 5, b)
	if a.Int63() != b.Int63() {
		t.Fatal("random stream diverged depending on remaining count")
	}
}

func TestCycleDelay(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	fixed := map[Mode]time.Duration{
		ModeBurst:  100 * time.Millisecond,
		ModePeak:   500 * time.Millisecond,
		ModeStress: 10 * time.Millisecond,
	}
	for mode, want := range fixed {
		if got := cycleDelay(mode, rnd); got != want {
			t.Errorf("cycleDelay(%s) = %v, want %v", mode, got, want)
		}
	}

	ranges := map[Mode][2]time.Duration{
		ModeNormal:    {time.Second, 3 * time.Second},
		ModeRealistic: {500 * time.Millisecond, 5 * time.Second},
	}
	for mode, bounds := range ranges {
		for i := 0; i < 200; i++ {
			got := cycleDelay(mode, rnd)
			if got < bounds[0] || got > bounds[1] {
				t.Fatalf("cycleDelay(%s) = %v outside [%v, %v]", mode, got, bounds[0], bounds[1])
			}
		}
	}
}

func TestParseMode(t *testing.T) {
	for _, in := range []string{"normal", "BURST", " peak ", "Stress", "realistic"} {
		if _, err := ParseMode(in); err != nil {
			t.Errorf("ParseMode(%q) unexpected error: %v", in, err)
		}
	}
	if _, err := ParseMode("chaos"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
