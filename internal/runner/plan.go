package runner

import (
	"math/rand"
	"time"
)

const (
	realisticBatchSize   = 3
	realisticBatchChance = 0.30
)

// cyclePolicy describes how one mode shapes cycles.
type cyclePolicy struct {
	batched  bool          // cycles are min(maxConcurrency, remaining) wide
	delay    time.Duration // fixed delay, used when delayMax is zero
	delayMin time.Duration
	delayMax time.Duration
}

var policies = map[Mode]cyclePolicy{
	ModeNormal:    {delayMin: time.Second, delayMax: 3 * time.Second},
	ModeBurst:     {delay: 100 * time.Millisecond},
	ModePeak:      {batched: true, delay: 500 * time.Millisecond},
	ModeStress:    {batched: true, delay: 10 * time.Millisecond},
	ModeRealistic: {delayMin: 500 * time.Millisecond, delayMax: 5 * time.Second},
}

// planCycle returns how many requests the next cycle dispatches.
// remaining must be >= 1. The result is always within [1, min(remaining, maxConcurrency)].
func planCycle(mode Mode, remaining, maxConcurrency int, rnd *rand.Rand) int {
	size := 1
	switch {
	case mode == ModeRealistic:
		// The draw is consumed even when the guard fails so the random stream
		// does not depend on how many requests remain.
		if rnd.Float64() < realisticBatchChance && remaining >= realisticBatchSize {
			size = realisticBatchSize
		}
	case policies[mode].batched:
		size = maxConcurrency
	}
	if size > remaining {
		size = remaining
	}
	if size > maxConcurrency {
		size = maxConcurrency
	}
	if size < 1 {
		size = 1
	}
	return size
}

// cycleDelay returns the pause applied after a non-final cycle.
func cycleDelay(mode Mode, rnd *rand.Rand) time.Duration {
	p, ok := policies[mode]
	if !ok {
		return time.Second
	}
	if p.delayMax > 0 {
		span := float64(p.delayMax - p.delayMin)
		return p.delayMin + time.Duration(rnd.Float64()*span)
	}
	return p.delay
}
