package harvest

import (
	"context"

	"sjsage522/placereviewworker/internal/page"
	"sjsage522/placereviewworker/logger"
	"sjsage522/placereviewworker/services/metrics"
)

// State of the scroll/termination state machine
type State int

const (
	Scanning State = iota
	IdleCheck
	Recovering
	Done
)

func (s State) String() string {
	switch s {
	case Scanning:
		return "SCANNING"
	case IdleCheck:
		return "IDLE_CHECK"
	case Recovering:
		return "RECOVERING"
	case Done:
		return "DONE"
	}
	return "UNKNOWN"
}

// StopReason explains why a run reached Done
type StopReason string

const (
	StopHardMax       StopReason = "hard_max"
	StopExhausted     StopReason = "exhausted"
	StopRecoveryLimit StopReason = "recovery_limit"
	StopMaxRounds     StopReason = "max_rounds"
	StopCancelled     StopReason = "cancelled"
)

// Options tune the controller. DefaultOptions matches the live feed.
type Options struct {
	HardMax           int
	IdleThreshold     int
	MaxRecoveryPasses int
	MaxRounds         int

	StepFraction float64
	DefaultStep  int
	JitterPx     int

	// every BounceEvery rounds the bounce direction flips and BouncePx is scrolled that way
	BounceEvery int
	BouncePx    int
	// every BackstepEvery rounds BackstepPx is scrolled back before the forward step
	BackstepEvery int
	BackstepPx    int

	RecoveryFractions []float64
	SettleBursts      int
	SettlePx          int

	ProgressEvery int

	StepPause   page.Range
	BouncePause page.Range
	JumpPause   page.Range
	ExpandPause page.Range
}

func DefaultOptions() Options {
	return Options{
		HardMax:           20000,
		IdleThreshold:     15,
		MaxRecoveryPasses: 20,
		MaxRounds:         9998,

		StepFraction: 0.7,
		DefaultStep:  700,
		JitterPx:     100,

		BounceEvery:   15,
		BouncePx:      800,
		BackstepEvery: 8,
		BackstepPx:    500,

		RecoveryFractions: []float64{0.25, 0.5, 0.75},
		SettleBursts:      3,
		SettlePx:          800,

		ProgressEvery: 5,

		StepPause:   page.Range{Min: 0.4, Max: 0.7},
		BouncePause: page.Range{Min: 0.3, Max: 0.6},
		JumpPause:   page.Range{Min: 0.6, Max: 1.0},
		ExpandPause: page.Range{Min: 0.4, Max: 0.7},
	}
}

// RoundOutcome is the result of one scan round. A round is idle when it
// added nothing, whether or not it also hit an error.
type RoundOutcome struct {
	New     int
	Records []Record
	Err     error
}

// Result of a controller run
type Result struct {
	Records    []Record
	Rounds     int
	Recoveries int
	Reason     StopReason
}

// Controller drives expand/scan/scroll rounds until the feed is exhausted
type Controller struct {
	Page      page.Page
	Scanner   *Scanner
	Discloser *Discloser
	Pacer     page.Pacer
	Options   Options

	// Frame is re-entered at the start of every round when set
	Frame string
	// Step is the forward scroll in pixels; DefaultStep when zero
	Step int

	log *logger.Logger

	state      State
	seen       *SeenSet
	result     Result
	idleRounds int
	direction  int
}

func NewController(p page.Page, scanner *Scanner, discloser *Discloser, pacer page.Pacer, opts Options, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	return &Controller{
		Page:      p,
		Scanner:   scanner,
		Discloser: discloser,
		Pacer:     pacer,
		Options:   opts,
		log:       log,
	}
}

// State returns the current state
func (c *Controller) State() State { return c.state }

func (c *Controller) transition(to State) {
	c.log.Debug().Str("from", c.state.String()).Str("to", to.String()).Int("idle", c.idleRounds).Msg("state transition")
	c.state = to
}

// Run harvests into seen until Done and returns everything collected
func (c *Controller) Run(ctx context.Context, seen *SeenSet) Result {
	c.seen = seen
	c.result = Result{}
	c.state = Scanning
	c.idleRounds = 0
	c.direction = 1

	_ = c.Page.ScrollTo(ctx, 0)
	c.Pacer.Pause(ctx, c.Options.JumpPause)

	for round := 1; c.state != Done; round++ {
		if round > c.Options.MaxRounds {
			c.finish(StopMaxRounds)
			break
		}
		if ctx.Err() != nil {
			c.finish(StopCancelled)
			break
		}
		c.result.Rounds = round

		out := c.round(ctx)
		c.observeRound(out)

		if c.Options.ProgressEvery > 0 && round%c.Options.ProgressEvery == 0 {
			c.log.Info().Int("round", round).Int("collected", len(c.result.Records)).Msg("harvest progress")
		}

		if c.capReached() {
			c.finish(StopHardMax)
			break
		}

		if out.New == 0 {
			c.idleRounds++
		} else {
			c.idleRounds = 0
		}

		if c.idleRounds >= c.Options.IdleThreshold {
			c.transition(IdleCheck)
			if c.result.Recoveries >= c.Options.MaxRecoveryPasses {
				c.finish(StopRecoveryLimit)
				break
			}
			if c.recover(ctx) == 0 {
				c.finish(StopExhausted)
				break
			}
			if c.capReached() {
				c.finish(StopHardMax)
				break
			}
			c.idleRounds = 0
			c.transition(Scanning)
		}

		c.advance(ctx, round)
	}

	if c.result.Reason != StopCancelled && !c.capReached() {
		c.settle(ctx)
	}
	c.log.Info().
		Int("collected", len(c.result.Records)).
		Int("rounds", c.result.Rounds).
		Int("recoveries", c.result.Recoveries).
		Str("reason", string(c.result.Reason)).
		Msg("harvest finished")
	return c.result
}

func (c *Controller) finish(reason StopReason) {
	c.result.Reason = reason
	c.transition(Done)
}

func (c *Controller) capReached() bool {
	return len(c.result.Records) >= c.Options.HardMax
}

// add appends records without letting the total pass HardMax and returns how many were kept
func (c *Controller) add(records []Record) int {
	room := c.Options.HardMax - len(c.result.Records)
	if room <= 0 {
		return 0
	}
	if len(records) > room {
		records = records[:room]
	}
	c.result.Records = append(c.result.Records, records...)
	metrics.ObserveRecords(len(records))
	return len(records)
}

func (c *Controller) round(ctx context.Context) RoundOutcome {
	var out RoundOutcome
	if c.Frame != "" {
		if err := c.Page.SwitchToFrame(ctx, c.Frame); err != nil {
			out.Err = err
			return out
		}
	}
	if _, err := c.Discloser.ExpandAll(ctx); err != nil {
		out.Err = err
	}
	records, err := c.Scanner.Scan(ctx, c.seen)
	if err != nil {
		out.Err = err
		return out
	}
	out.Records = records
	out.New = c.add(records)
	return out
}

func (c *Controller) observeRound(out RoundOutcome) {
	switch {
	case out.Err != nil:
		c.log.Warn().Err(out.Err).Msg("round failed")
		metrics.ObserveRound("error")
	case out.New == 0:
		metrics.ObserveRound("idle")
	default:
		metrics.ObserveRound("new")
	}
}

func (c *Controller) expand(ctx context.Context) {
	if _, err := c.Discloser.ExpandAll(ctx); err != nil {
		c.log.Debug().Err(err).Msg("expand failed")
	}
}

// recover sweeps bottom, top and the fixed fractions, expanding at each stop,
// then scans once more. It returns the number of unseen reviews found.
func (c *Controller) recover(ctx context.Context) int {
	c.transition(Recovering)
	c.result.Recoveries++
	c.log.Info().Int("idle", c.idleRounds).Int("collected", len(c.result.Records)).Msg("idle stall, running recovery sweep")

	_ = c.Page.ScrollTo(ctx, 1)
	c.Pacer.Pause(ctx, c.Options.JumpPause)
	c.expand(ctx)
	c.Pacer.Pause(ctx, c.Options.ExpandPause)

	_ = c.Page.ScrollTo(ctx, 0)
	c.Pacer.Pause(ctx, c.Options.JumpPause)
	c.expand(ctx)

	for _, f := range c.Options.RecoveryFractions {
		_ = c.Page.ScrollTo(ctx, f)
		c.Pacer.Pause(ctx, c.Options.ExpandPause)
		c.expand(ctx)
	}

	_, records, err := c.Scanner.ScanForRecovery(ctx, c.seen)
	if err != nil {
		c.log.Warn().Err(err).Msg("recovery scan failed")
	}
	n := c.add(records)
	if n == 0 {
		metrics.ObserveRecovery("exhausted")
	} else {
		metrics.ObserveRecovery("resumed")
		c.log.Info().Int("new", n).Msg("recovery found more reviews")
	}
	return n
}

// advance bounces, backsteps and takes the jittered forward step
func (c *Controller) advance(ctx context.Context, round int) {
	o := c.Options
	if o.BounceEvery > 0 && round%o.BounceEvery == 0 {
		c.direction = -c.direction
		_ = c.Page.ScrollBy(ctx, c.direction*o.BouncePx)
		c.Pacer.Pause(ctx, o.BouncePause)
	}
	if o.BackstepEvery > 0 && round%o.BackstepEvery == 0 {
		_ = c.Page.ScrollBy(ctx, -o.BackstepPx)
		c.Pacer.Pause(ctx, o.BouncePause)
	}

	step := c.Step
	if step <= 0 {
		step = o.DefaultStep
	}
	_ = c.Page.ScrollBy(ctx, step+c.Pacer.Jitter(o.JitterPx))
	c.Pacer.Pause(ctx, o.StepPause)
}

// settle catches content that rendered after the loop stopped
func (c *Controller) settle(ctx context.Context) {
	_ = c.Page.ScrollTo(ctx, 0)
	c.Pacer.Pause(ctx, c.Options.JumpPause)
	c.expand(ctx)
	c.Pacer.Pause(ctx, c.Options.ExpandPause)

	for i := 0; i < c.Options.SettleBursts; i++ {
		_ = c.Page.ScrollBy(ctx, c.Options.SettlePx)
		c.Pacer.Pause(ctx, c.Options.BouncePause)
		c.expand(ctx)
	}

	records, err := c.Scanner.Scan(ctx, c.seen)
	if err != nil {
		c.log.Warn().Err(err).Msg("final scan failed")
		return
	}
	c.add(records)
}
