// Package harvest drives a harvest run: it acquires page context, decides how
// a page should be handled, delegates to scrape/dig engines, fans out over
// gallery pages and finally downloads or presents what was found.
package harvest

import (
	"context"
	"fmt"
	"sync"

	"github.com/SirZenith/gimme/gallery"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const (
	msgInitPage      = "Initializing: Collecting uris from page."
	msgInitGalleries = "Initializing: Collecting links to galleries from page."
	msgInternalError = "There was an internal error. Please try refreshing the page."
	msgStopped       = "Harvest stopped."
)

// Harvester exposes the entry operations of harvesting. Only one entry
// operation can be active at a time, a call made while another run is active
// fails with gallery.ErrRunActive.
type Harvester struct {
	Pages     PageContextProvider
	Fetcher   DocumentFetcher
	Scraper   Extractor
	Digger    Extractor
	Rules     RuleEvaluator
	Downloads DownloadSink
	Sink      PresentationSink
	Store     StateStore

	OutputDir         string // root directory of per page downloads directories
	FanoutParallelism int    // sub-page load parallelism of gallery-of-galleries runs

	NewRunID func() string

	lock   sync.Mutex
	active *runState
	cancel context.CancelFunc
}

// Scrape collects media from the page and downloads all of them.
func (h *Harvester) Scrape(ctx context.Context, media gallery.MediaOptions) (*Outcome, error) {
	return h.Run(ctx, Operation{Mode: ModeScrape, Media: media})
}

// ScrapeFileOptions collects media from the page and presents them as file
// options.
func (h *Harvester) ScrapeFileOptions(ctx context.Context, media gallery.MediaOptions) (*Outcome, error) {
	return h.Run(ctx, Operation{Mode: ModeScrape, PresentChoice: true, Media: media})
}

// DigGallery digs gallery on the page and downloads everything found.
func (h *Harvester) DigGallery(ctx context.Context) (*Outcome, error) {
	return h.Run(ctx, Operation{Mode: ModeDig, Media: gallery.AllMedia})
}

// DigFileOptions digs gallery on the page and presents findings as file
// options.
func (h *Harvester) DigFileOptions(ctx context.Context) (*Outcome, error) {
	return h.Run(ctx, Operation{Mode: ModeDig, PresentChoice: true, Media: gallery.AllMedia})
}

// DigGalleryGallery digs every gallery linked from a gallery-of-galleries page
// and presents the combined findings as file options.
func (h *Harvester) DigGalleryGallery(ctx context.Context) (*Outcome, error) {
	return h.Run(ctx, Operation{Mode: ModeGalleryOfGalleries, PresentChoice: true, Media: gallery.AllMedia})
}

// Run executes one entry operation. Whatever happens during the run, current
// gallery map gets persisted exactly once and running flag is reset before
// Run returns.
func (h *Harvester) Run(ctx context.Context, op Operation) (*Outcome, error) {
	run, runCtx, err := h.begin(ctx, op)
	if err != nil {
		return nil, err
	}

	kind := op.runKind()

	h.clearState(run)
	if op.Mode == ModeGalleryOfGalleries {
		h.progress(msgInitGalleries)
	} else {
		h.progress(msgInitPage)
	}
	h.sink().SetRunning(kind, true)

	defer h.finalize(runCtx, run, kind)

	outcome, err := h.execute(runCtx, run)
	if err != nil {
		h.reportFailure(run, err)
		return outcome, err
	}

	return outcome, nil
}

// Stop asks active run to stop scheduling new work. Returns false when no run
// is active.
func (h *Harvester) Stop() bool {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.cancel == nil {
		return false
	}

	h.cancel()

	return true
}

// Stage returns stage of active run, StageIdle when nothing is running.
func (h *Harvester) Stage() Stage {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.active == nil {
		return StageIdle
	}

	return h.active.stage
}

// Active reports whether an entry operation is running.
func (h *Harvester) Active() bool {
	h.lock.Lock()
	defer h.lock.Unlock()

	return h.active != nil
}

// begin claims harvester for a new run.
func (h *Harvester) begin(ctx context.Context, op Operation) (*runState, context.Context, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.active != nil {
		return nil, nil, fmt.Errorf("%w: %s run %s is in stage %s", gallery.ErrRunActive, h.active.op.Mode, h.active.id, h.active.stage)
	}

	newID := h.NewRunID
	if newID == nil {
		newID = uuid.NewString
	}

	run := newRunState(newID(), op)
	runCtx, cancel := context.WithCancel(ctx)

	h.active = run
	h.cancel = cancel

	log.Debugf("run %s: %s (choice: %t)", run.id, op.Mode, op.PresentChoice)

	return run, runCtx, nil
}

// release gives up harvester claimed by given run.
func (h *Harvester) release(run *runState) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.active != run {
		return
	}

	if h.cancel != nil {
		h.cancel()
	}

	h.active = nil
	h.cancel = nil
}

func (h *Harvester) setStage(run *runState, stage Stage) {
	h.lock.Lock()
	prev := run.stage
	run.stage = stage
	h.lock.Unlock()

	log.Debugf("run %s: %s -> %s", run.id, prev, stage)
}

// clearState resets transient data of a run and the presentation layer.
func (h *Harvester) clearState(run *runState) {
	run.alreadyDownloaded = map[string]bool{}
	run.galleryMap = gallery.GalleryMap{}
	h.sink().ClearChoices()
}

// finalize persists gallery map and resets running flag.
func (h *Harvester) finalize(ctx context.Context, run *runState, kind RunKind) {
	h.setStage(run, StageFinalizing)

	h.persist(context.WithoutCancel(ctx), run.galleryMap)
	h.sink().SetRunning(kind, false)

	h.setStage(run, StageIdle)
	h.release(run)
}

func (h *Harvester) progress(text string) {
	h.sink().SetProgress(text)
}

func (h *Harvester) sink() PresentationSink {
	if h.Sink == nil {
		return discardSink{}
	}
	return h.Sink
}

func (h *Harvester) rules() RuleEvaluator {
	if h.Rules == nil {
		return passThroughRules{}
	}
	return h.Rules
}

// passThroughRules is used when no rule evaluator is configured.
type passThroughRules struct{}

func (passThroughRules) Evaluate(rawMap gallery.GalleryMap, _ string) Evaluation {
	return Evaluation{Map: rawMap.Clone(), Options: gallery.DefaultDigOptions()}
}

func (passThroughRules) Describe(_ string) gallery.ProbeDescriptor {
	return gallery.ProbeDescriptor{}
}

type discardSink struct{}

func (discardSink) SetProgress(string)        {}
func (discardSink) SetBadgeCount(int)         {}
func (discardSink) ShowChoices([]*FileOption) {}
func (discardSink) ShowDownloading(string)    {}
func (discardSink) ClearChoices()             {}
func (discardSink) SetRunning(RunKind, bool)  {}
