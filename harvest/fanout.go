package harvest

import (
	"context"
	"fmt"
	"net/url"

	"github.com/SirZenith/gimme/gallery"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// PageFailure records one sub-page that was excluded from merging.
type PageFailure struct {
	URI   string
	Stage string // "load" or "dig"
	Err   error
}

// FanoutReport summarizes one reduce call.
type FanoutReport struct {
	Attempted int
	Loaded    int
	Dug       int
	Failures  []PageFailure
}

// Reducer loads a list of gallery pages, digs each of them and folds their
// results into one map.
type Reducer struct {
	Fetcher DocumentFetcher
	Digger  Extractor
	Rules   RuleEvaluator
	Sink    PresentationSink

	// Number of pages loaded at the same time, values less than 2 mean
	// strictly sequential loading. Merge order always follows input order.
	Parallelism int
}

// loadedPage is result slot of one sub-page in load phase.
type loadedPage struct {
	locDoc  gallery.LocDoc
	err     error
	skipped bool // never loaded because run was stopped
	done    chan struct{}
}

// Reduce returns combined map of all pages that could be loaded and dug. Page
// failures are isolated and reported in returned FanoutReport. Returned error
// is non-nil only when ctx gets canceled, combined map built so far is still
// returned in that case.
func (r *Reducer) Reduce(ctx context.Context, subPageURIs []string) (gallery.GalleryMap, FanoutReport, error) {
	report := FanoutReport{Attempted: len(subPageURIs)}
	combined := gallery.GalleryMap{}

	pages, loadErr := r.loadPages(ctx, subPageURIs, &report)

	for i, page := range pages {
		if page.err != nil {
			continue
		}

		if err := ctx.Err(); err != nil {
			return combined, report, fmt.Errorf("%w: %s", gallery.ErrStopped, err)
		}

		uri := subPageURIs[i]
		r.progress("Beginning dig for " + uri)

		result, err := r.digPage(ctx, page.locDoc)
		if err != nil {
			log.Warnf("failed to dig gallery page %s: %s", uri, err)
			r.progress("Failed to dig gallery page " + uri)
			report.Failures = append(report.Failures, PageFailure{URI: uri, Stage: "dig", Err: err})
			continue
		}

		report.Dug++
		gallery.Merge(combined, result)

		log.Infof("received %d entries for %s", len(result), uri)
		r.progress("Received file list for " + uri)
	}

	if loadErr != nil {
		return combined, report, loadErr
	}

	return combined, report, nil
}

// loadPages fetches every sub-page, result slice is index aligned with input.
// Pages may load out of order, but they are reported in input order.
func (r *Reducer) loadPages(ctx context.Context, uris []string, report *FanoutReport) ([]loadedPage, error) {
	pages := make([]loadedPage, len(uris))
	for i := range pages {
		pages[i].done = make(chan struct{})
	}

	group := errgroup.Group{}
	group.SetLimit(max(1, r.Parallelism))

	go func() {
		for i, uri := range uris {
			page := &pages[i]
			group.Go(func() error {
				defer close(page.done)

				if ctx.Err() != nil {
					page.skipped = true
					return nil
				}

				page.locDoc, page.err = r.loadPage(ctx, uri)

				return nil
			})
		}
	}()

	var stopErr error
	for i, uri := range uris {
		page := &pages[i]
		<-page.done

		switch {
		case page.skipped:
			if stopErr == nil {
				stopErr = fmt.Errorf("%w: %s", gallery.ErrStopped, ctx.Err())
			}
			page.err = stopErr
		case page.err != nil:
			log.Warnf("failed to load gallery page %s: %s", uri, page.err)
			r.progress("Failed to load gallery page " + uri)
			report.Failures = append(report.Failures, PageFailure{URI: uri, Stage: "load", Err: page.err})
		default:
			report.Loaded++
			r.progress("Loading gallery page " + uri)
			if r.Sink != nil {
				r.Sink.SetBadgeCount(report.Loaded)
			}
		}
	}

	group.Wait()

	return pages, stopErr
}

func (r *Reducer) loadPage(ctx context.Context, uri string) (gallery.LocDoc, error) {
	loc, err := url.Parse(uri)
	if err != nil {
		return gallery.LocDoc{}, fmt.Errorf("%w: invalid gallery URI %q: %s", gallery.ErrFetchFailed, uri, err)
	}

	if r.Fetcher == nil {
		return gallery.LocDoc{}, fmt.Errorf("%w: no document fetcher for %s", gallery.ErrFetchFailed, uri)
	}

	doc, err := r.Fetcher.Fetch(ctx, uri)
	if err != nil {
		return gallery.LocDoc{}, err
	}

	return gallery.LocDoc{Location: loc, Document: doc}, nil
}

// digPage runs initial pass, rule evaluation and the decided dig on one
// loaded page.
func (r *Reducer) digPage(ctx context.Context, locDoc gallery.LocDoc) (gallery.GalleryMap, error) {
	scraped, err := r.Digger.Extract(ctx, locDoc, ExtractRequest{
		Options: gallery.DigOptions{Scrape: true, Dig: false},
		Seed:    gallery.GalleryMap{},
	})
	if err != nil {
		return nil, err
	}

	log.Debugf("initial gallery map of %s has %d entries", locDoc.URI(), len(scraped))

	evaluation := r.Rules.Evaluate(scraped, locDoc.URI())

	return r.Digger.Extract(ctx, locDoc, ExtractRequest{
		Options: evaluation.Options,
		Seed:    evaluation.Map.Clone(),
	})
}

func (r *Reducer) progress(text string) {
	if r.Sink != nil {
		r.Sink.SetProgress(text)
	}
}
