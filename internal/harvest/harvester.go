package harvest

import (
	"context"
	"time"

	"sjsage522/placereviewworker/helpers"
	"sjsage522/placereviewworker/internal/navigate"
	"sjsage522/placereviewworker/internal/page"
	"sjsage522/placereviewworker/logger"
	"sjsage522/placereviewworker/pkg/errors"
	"sjsage522/placereviewworker/services/metrics"
)

// ReviewsTab is the detail tab holding visitor reviews
const ReviewsTab = "리뷰"

// SessionFactory opens a fresh page session
type SessionFactory func(ctx context.Context) (page.Page, error)

// Sink persists one place's records
type Sink interface {
	Save(ctx context.Context, place string, records []Record) error
}

// Guard skips places harvested within a cooldown
type Guard interface {
	Recent(place string) (bool, error)
	Mark(place string, collected int) error
	Forget(place string) error
}

// Summary counts the outcome of a batch
type Summary struct {
	Harvested int
	Failed    int
	Skipped   int
	Collected int
}

// Harvester runs one controller per place, strictly one place at a time
type Harvester struct {
	NewSession   SessionFactory
	Sink         Sink
	Guard        Guard
	Pacer        page.Pacer
	Options      Options
	SearchURL    string
	FrameTimeout time.Duration
	Diagnostics  helpers.LoggerInterface

	// Force clears guard marks instead of skipping recently harvested places
	Force bool
}

// Run harvests every name in order. A failing place is logged once and the
// batch moves on with a fresh session.
func (h *Harvester) Run(ctx context.Context, names []string) Summary {
	var sum Summary
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		log := logger.ForEntity(name)
		start := time.Now()

		n, skipped, err := h.HarvestOne(ctx, name)
		switch {
		case err != nil && !errors.IsEntityFatal(err):
			sum.Harvested++
			sum.Collected += n
			metrics.ObserveHarvest("ok", time.Since(start))
			log.Warn().Err(err).Int("collected", n).Msg("harvest complete with warnings")
		case err != nil:
			sum.Failed++
			metrics.ObserveHarvest("failed", time.Since(start))
			log.Error().Err(err).Msg("harvest failed")
			if h.Diagnostics != nil {
				h.Diagnostics.LogError(name, err)
			}
		case skipped:
			sum.Skipped++
			metrics.ObserveHarvest("skipped", 0)
			log.Info().Msg("harvested recently, skipping")
		default:
			sum.Harvested++
			sum.Collected += n
			metrics.ObserveHarvest("ok", time.Since(start))
			log.Info().Int("collected", n).Dur("took", time.Since(start)).Msg("harvest complete")
		}
	}
	return sum
}

// HarvestOne collects and saves the reviews of one place. The session is
// closed on every path.
func (h *Harvester) HarvestOne(ctx context.Context, name string) (collected int, skipped bool, err error) {
	log := logger.ForEntity(name)

	if h.Guard != nil && h.Force {
		if err := h.Guard.Forget(name); err != nil {
			metrics.ObserveCache("error")
			log.Warn().Err(errors.NewCache(name, "guard forget", err)).Msg("harvest guard not cleared")
		}
	} else if h.Guard != nil {
		recent, err := h.Guard.Recent(name)
		if err != nil {
			metrics.ObserveCache("error")
			log.Warn().Err(errors.NewCache(name, "guard lookup", err)).Msg("harvest guard unavailable")
		} else if recent {
			metrics.ObserveCache("hit")
			return 0, true, nil
		} else {
			metrics.ObserveCache("miss")
		}
	}

	p, err := h.NewSession(ctx)
	if err != nil {
		return 0, false, errors.NewSession(name, "start browser", err)
	}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("session close failed")
		}
	}()

	nav := navigate.New(p, h.Pacer, h.SearchURL, h.FrameTimeout)
	if err := nav.OpenEntryBySearch(ctx, name); err != nil {
		return 0, false, err
	}
	if !nav.OpenTab(ctx, ReviewsTab) {
		log.Debug().Msg("reviews tab not found")
	}
	if !nav.SortByLatest(ctx) {
		log.Debug().Msg("latest sort unavailable")
	}

	step := h.Options.DefaultStep
	if vh, err := p.ViewportHeight(ctx); err == nil && vh > 0 {
		step = int(float64(vh) * h.Options.StepFraction)
	}

	place := name
	if html, err := p.HTML(ctx); err == nil {
		if title := navigate.PlaceTitle(html); title != "" {
			place = title
		}
	}

	ctrl := NewController(p, NewScanner(p, place), NewDiscloser(p, h.Pacer), h.Pacer, h.Options, log)
	ctrl.Frame = navigate.EntryFrame
	ctrl.Step = step
	res := ctrl.Run(ctx, NewSeenSet())

	records := Dedup(res.Records)
	if len(records) > 0 {
		// persist what was collected even when the batch is being cancelled
		if err := h.Sink.Save(context.WithoutCancel(ctx), place, records); err != nil {
			return len(records), false, errors.NewStorage(name, "save reviews", err)
		}
	}

	if h.Guard != nil && res.Reason != StopCancelled {
		if err := h.Guard.Mark(name, len(records)); err != nil {
			metrics.ObserveCache("error")
			return len(records), false, errors.NewCache(name, "guard mark", err)
		}
		metrics.ObserveCache("set")
	}
	return len(records), false, nil
}
