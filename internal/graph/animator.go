package graph

import (
	"context"
	"time"
)

// Frame types sent while animating.
const (
	FrameTick = "tick"
	FrameEnd  = "end"
)

// Frame is one update pushed to a client during an animated layout.
type Frame struct {
	Type  string     `json:"type"`
	Tick  int        `json:"tick"`
	Stats TickStats  `json:"stats"`
	Nodes []Position `json:"nodes"`
}

// Animator paces a simulation at a fixed frame interval and emits snapshots.
type Animator struct {
	interval time.Duration
	every    int
}

// NewAnimator returns an animator that ticks once per interval and emits a
// frame every n ticks. An interval of 0 runs as fast as possible.
func NewAnimator(interval time.Duration, every int) *Animator {
	if every < 1 {
		every = 1
	}
	return &Animator{interval: interval, every: every}
}

// Animate runs iterations ticks of sim. A final FrameEnd is always emitted on
// normal completion. Emit errors and ctx cancellation stop the run.
func (a *Animator) Animate(ctx context.Context, sim *Simulation, iterations int, emit func(Frame) error) error {
	var pace <-chan time.Time
	if a.interval > 0 {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		pace = ticker.C
	}

	var last TickStats
	for i := 0; i < iterations; i++ {
		if pace != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-pace:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		st, err := sim.Tick(ctx)
		if err != nil {
			return err
		}
		last = st
		if st.Tick%a.every == 0 && i != iterations-1 {
			if err := emit(Frame{Type: FrameTick, Tick: st.Tick, Stats: st, Nodes: sim.Positions()}); err != nil {
				return err
			}
		}
	}
	return emit(Frame{Type: FrameEnd, Tick: sim.Ticks(), Stats: last, Nodes: sim.Positions()})
}
