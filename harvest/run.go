package harvest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/SirZenith/gimme/common"
	"github.com/SirZenith/gimme/gallery"
	"github.com/charmbracelet/log"
)

// execute walks a run through acquire, decide, harvest and its terminal
// action.
func (h *Harvester) execute(ctx context.Context, run *runState) (*Outcome, error) {
	h.setStage(run, StageAcquiring)
	if err := h.acquire(ctx, run); err != nil {
		return nil, err
	}

	if err := checkStopped(ctx); err != nil {
		return h.outcome(run, nil), err
	}

	h.setStage(run, StageDeciding)
	h.decide(run)

	if err := checkStopped(ctx); err != nil {
		return h.outcome(run, nil), err
	}

	h.setStage(run, StageHarvesting)
	harvested, err := h.harvest(ctx, run)
	if err != nil {
		if errors.Is(err, gallery.ErrStopped) && len(harvested) > 0 {
			gallery.Merge(run.galleryMap, harvested)
		}
		return h.outcome(run, nil), err
	}

	if err := checkStopped(ctx); err != nil {
		gallery.Merge(run.galleryMap, harvested)
		return h.outcome(run, nil), err
	}

	if run.op.PresentChoice {
		h.setStage(run, StagePresenting)
		options := h.present(run, harvested)
		return h.outcome(run, options), nil
	}

	h.setStage(run, StageDownloading)
	entries := h.download(ctx, run, harvested)

	outcome := h.outcome(run, nil)
	outcome.Downloads = entries

	return outcome, nil
}

func (h *Harvester) outcome(run *runState, options []*FileOption) *Outcome {
	return &Outcome{
		RunID:        run.id,
		Map:          run.galleryMap.Clone(),
		DownloadsDir: run.downloadsDir,
		Options:      options,
		Registry:     run.registry,
		Fanout:       run.fanout,
	}
}

// acquire reads location, initial probe map and document of target page.
func (h *Harvester) acquire(ctx context.Context, run *runState) error {
	if h.Pages == nil {
		return fmt.Errorf("%w: no page context provider", gallery.ErrContextUnavailable)
	}

	describe := func(pageURI string) gallery.ProbeDescriptor {
		switch {
		case run.op.Mode == ModeGalleryOfGalleries:
			return gallery.DefaultProbe
		case run.op.useSiteProbe():
			return h.rules().Describe(pageURI)
		default:
			return gallery.ProbeDescriptor{}
		}
	}

	probe, err := h.Pages.Acquire(ctx, describe)
	if err != nil {
		if errors.Is(err, gallery.ErrContextUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %s", gallery.ErrContextUnavailable, err)
	}

	if probe == nil || probe.Location == nil {
		return fmt.Errorf("%w: page location unknown", gallery.ErrContextUnavailable)
	}

	doc := probe.Document
	if doc == nil {
		if h.Fetcher == nil {
			return fmt.Errorf("%w: no document for %s", gallery.ErrContextUnavailable, probe.Location)
		}

		doc, err = h.Fetcher.Fetch(ctx, probe.Location.String())
		if err != nil {
			return err
		}
	}

	run.probeMap = probe.Links.Clone()
	if run.probeMap == nil {
		run.probeMap = gallery.GalleryMap{}
	}

	run.locDoc = gallery.LocDoc{Location: probe.Location, Document: doc}
	run.downloadsDir = common.SaltedDirName(h.OutputDir, probe.Location, run.id)

	log.Infof("page: %s, %d probed link(s)", probe.Location, len(run.probeMap))

	return nil
}

// decide applies site rules to probe map. When nothing survives, both scrape
// and dig are forced on.
func (h *Harvester) decide(run *runState) {
	evaluation := h.rules().Evaluate(run.probeMap.Clone(), run.locDoc.URI())

	run.galleryMap = evaluation.Map
	if run.galleryMap == nil {
		run.galleryMap = gallery.GalleryMap{}
	}

	run.digOptions = evaluation.Options
	if len(run.galleryMap) == 0 {
		run.digOptions = gallery.DigOptions{Scrape: true, Dig: true}
	}

	log.Debugf("decided options: scrape=%t, dig=%t, %d entries", run.digOptions.Scrape, run.digOptions.Dig, len(run.galleryMap))
}

// harvest produces harvested map according to mode of the run.
func (h *Harvester) harvest(ctx context.Context, run *runState) (gallery.GalleryMap, error) {
	switch run.op.Mode {
	case ModeScrape:
		// presenting choices always scrapes anew, page given set only seeds it
		options := run.digOptions
		if run.op.PresentChoice {
			options.Scrape = true
		} else if !options.Scrape {
			return run.galleryMap.Clone(), nil
		}
		return h.extract(ctx, h.Scraper, run, ExtractRequest{
			Options: options,
			Media:   run.op.Media,
			Seed:    run.galleryMap.Clone(),
		})
	case ModeDig:
		if !run.digOptions.Scrape && !run.digOptions.Dig {
			return run.galleryMap.Clone(), nil
		}
		return h.extract(ctx, h.Digger, run, ExtractRequest{
			Options: run.digOptions,
			Media:   run.op.Media,
			Seed:    run.galleryMap.Clone(),
		})
	case ModeGalleryOfGalleries:
		return h.harvestGalleries(ctx, run)
	default:
		return nil, fmt.Errorf("unknown harvest mode %d", run.op.Mode)
	}
}

func (h *Harvester) extract(ctx context.Context, engine Extractor, run *runState, req ExtractRequest) (gallery.GalleryMap, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: no %s engine", gallery.ErrExtractionFailed, run.op.Mode)
	}

	result, err := engine.Extract(ctx, run.locDoc, req)
	if err != nil {
		return nil, wrapExtraction(err)
	}

	if result == nil {
		result = gallery.GalleryMap{}
	}

	return result, nil
}

// harvestGalleries digs links of current page as gallery pages, then digs
// every gallery page and merges their results.
func (h *Harvester) harvestGalleries(ctx context.Context, run *runState) (gallery.GalleryMap, error) {
	links, err := h.extract(ctx, h.Digger, run, ExtractRequest{
		Options: gallery.DigOptions{Scrape: true, Dig: false},
		Seed:    run.probeMap.Clone(),
	})
	if err != nil {
		return nil, err
	}

	subPages := links.Targets()
	log.Infof("found %d gallery page(s)", len(subPages))

	reducer := Reducer{
		Fetcher:     h.Fetcher,
		Digger:      h.Digger,
		Rules:       h.rules(),
		Sink:        h.sink(),
		Parallelism: h.FanoutParallelism,
	}

	combined, report, err := reducer.Reduce(ctx, subPages)
	run.fanout = report

	if len(report.Failures) > 0 {
		log.Warnf("%d of %d gallery page(s) failed", len(report.Failures), report.Attempted)
	}

	h.progress("Received file list of length: " + strconv.Itoa(len(combined)))

	return combined, err
}

// present merges harvested map into run state and turns it into file
// options.
func (h *Harvester) present(run *runState, harvested gallery.GalleryMap) []*FileOption {
	gallery.Merge(run.galleryMap, harvested)

	run.registry = NewRegistry(run.downloadsDir, h.sink(), h.selectFunc(run))

	sink := h.sink()
	sink.ClearChoices()

	if len(harvested) == 0 {
		sink.SetBadgeCount(0)
		h.progress("No URLs to download.")
		return []*FileOption{}
	}

	options := run.registry.Present(harvested)
	sink.ShowChoices(options)

	h.progress(fmt.Sprintf("Please select which of the %d files you would like to download.", len(options)))

	return options
}

// download replaces run state map with harvested map and downloads all its
// entries in one batch. Batch failure is reported but does not fail the run.
func (h *Harvester) download(ctx context.Context, run *runState, harvested gallery.GalleryMap) []DownloadEntry {
	run.galleryMap = harvested.Clone()

	entries := []DownloadEntry{}
	for _, thumbURI := range harvested.Keys() {
		sourceURI := harvested[thumbURI]

		destPath, err := NameDestination(sourceURI, run.downloadsDir)
		if err != nil {
			log.Debugf("skip download of %s: %s", thumbURI, err)
			continue
		}

		entries = append(entries, DownloadEntry{
			ID:        strconv.Itoa(len(entries) + 1),
			SourceURI: sourceURI,
			ThumbURI:  thumbURI,
			DestPath:  destPath,
		})
	}

	sink := h.sink()
	sink.SetBadgeCount(len(entries))

	if len(entries) == 0 {
		h.progress("No URLs to download.")
		return entries
	}

	h.progress(fmt.Sprintf("%d Downloading!", len(entries)))
	for _, entry := range entries {
		run.alreadyDownloaded[entry.SourceURI] = true
		sink.ShowDownloading(entry.ID)
	}

	if h.Downloads == nil {
		log.Warnf("no downloader configured, %d entries skipped", len(entries))
		return entries
	}

	if err := h.Downloads.DownloadBatch(ctx, run.downloadsDir, entries); err != nil {
		log.Errorf("batch download failed: %s", err)
		h.progress("Some downloads failed: " + err.Error())
	}

	return entries
}

// selectFunc returns selection callback for file options of given run. Each
// source gets downloaded at most once per run.
func (h *Harvester) selectFunc(run *runState) SelectFunc {
	var lock sync.Mutex

	return func(ctx context.Context, sourceURI, destPath string) error {
		lock.Lock()
		if run.alreadyDownloaded[sourceURI] {
			lock.Unlock()
			log.Infof("already downloaded: %s", sourceURI)
			return nil
		}
		run.alreadyDownloaded[sourceURI] = true
		lock.Unlock()

		if h.Downloads == nil {
			return fmt.Errorf("no downloader configured")
		}

		return h.Downloads.DownloadOne(ctx, sourceURI, destPath)
	}
}

// reportFailure moves run into failed stage and shows failure message.
func (h *Harvester) reportFailure(run *runState, err error) {
	if errors.Is(err, gallery.ErrStopped) {
		log.Warnf("run %s stopped during %s", run.id, run.stage)
		h.progress(msgStopped)
		return
	}

	h.setStage(run, StageFailed)
	log.Errorf("run %s failed: %s", run.id, err)
	h.progress(msgInternalError)
}

func checkStopped(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s", gallery.ErrStopped, err)
	}
	return nil
}

func wrapExtraction(err error) error {
	switch {
	case errors.Is(err, gallery.ErrExtractionFailed),
		errors.Is(err, gallery.ErrFetchFailed),
		errors.Is(err, gallery.ErrStopped):
		return err
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %s", gallery.ErrStopped, err)
	default:
		return fmt.Errorf("%w: %s", gallery.ErrExtractionFailed, err)
	}
}
