package harvest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/SirZenith/gimme/gallery"
)

const testPage = "http://g.com/galleries/index.html"

func newTestHarvester(links gallery.GalleryMap) (*Harvester, *recordSink, *memStore, *fakeDownloads) {
	sink := &recordSink{}
	store := &memStore{}
	downloads := &fakeDownloads{}

	h := &Harvester{
		Pages: &fakeProvider{probe: &PageProbe{
			Location: mustURL(testPage),
			Links:    links,
			Document: mustDoc("<html><body></body></html>"),
		}},
		Fetcher:   &fakeFetcher{},
		Scraper:   &fakeExtractor{},
		Digger:    &fakeExtractor{},
		Rules:     &fakeRules{},
		Downloads: downloads,
		Sink:      sink,
		Store:     store,
		OutputDir: "out",
		NewRunID:  func() string { return "0123456789abcdef" },
	}

	return h, sink, store, downloads
}

func checkFinalized(t *testing.T, h *Harvester, sink *recordSink, store *memStore, kind RunKind) {
	t.Helper()

	if store.saves != 1 {
		t.Errorf("state should be persisted exactly once, got %d", store.saves)
	}

	want := []runningEvent{{kind, true}, {kind, false}}
	if !reflect.DeepEqual(sink.running, want) {
		t.Errorf("output:\n\t%v\nwant:\n\t%v", sink.running, want)
	}

	if h.Active() || h.Stage() != StageIdle {
		t.Errorf("harvester should be idle after run, stage %s", h.Stage())
	}
}

func TestGalleryOfGalleries(t *testing.T) {
	h, sink, store, _ := newTestHarvester(gallery.GalleryMap{
		"http://g.com/thumb/1.jpg": "http://g.com/p1",
		"http://g.com/thumb/2.jpg": "http://g.com/p2",
	})

	pages := map[string]gallery.GalleryMap{
		"http://g.com/p1": {
			"a":      "http://i.com/a.jpg",
			"b":      "http://i.com/b.jpg",
			"shared": "http://i.com/s1.jpg",
		},
		"http://g.com/p2": {
			"c":      "http://i.com/c.jpg",
			"d":      "http://i.com/d.jpg",
			"shared": "http://i.com/s2.jpg",
		},
	}

	h.Digger = &fakeExtractor{
		fn: func(_ context.Context, locDoc gallery.LocDoc, req ExtractRequest) (gallery.GalleryMap, error) {
			if locDoc.URI() == testPage {
				return req.Seed, nil
			}
			if req.Options.Scrape && !req.Options.Dig {
				return pages[locDoc.URI()].Clone(), nil
			}
			return req.Seed, nil
		},
	}

	outcome, err := h.DigGalleryGallery(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if len(outcome.Options) != 5 {
		t.Fatalf("expected 5 options, got %d", len(outcome.Options))
	}

	for i, opt := range outcome.Options {
		if opt.ID != fmt.Sprint(i+1) {
			t.Errorf("option %d has id %s", i, opt.ID)
		}
	}

	last := outcome.Options[4]
	if last.ThumbURI != "shared" || last.SourceURI != "http://i.com/s2.jpg" {
		t.Errorf("later sub-page should win, got %+v", last)
	}

	if !strings.HasPrefix(last.DestPath, "out/Gimme-g.com_index-01234567/") {
		t.Errorf("unexpected destination %q", last.DestPath)
	}

	// persisted map also keeps gallery links decided from the page itself
	if len(store.last) != 7 || store.last["shared"] != "http://i.com/s2.jpg" {
		t.Errorf("unexpected persisted map %v", store.last)
	}

	if len(sink.choices) != 1 || len(sink.choices[0]) != 5 {
		t.Errorf("choices should be shown once with 5 options, got %v", sink.choices)
	}

	provider := h.Pages.(*fakeProvider)
	if provider.described != gallery.DefaultProbe {
		t.Errorf("gallery-of-galleries should use default probe, got %+v", provider.described)
	}

	checkFinalized(t, h, sink, store, RunDigging)
}

func TestEmptyProbeForcesScrapeAndDig(t *testing.T) {
	h, sink, store, downloads := newTestHarvester(nil)

	digger := &fakeExtractor{
		fn: func(_ context.Context, _ gallery.LocDoc, req ExtractRequest) (gallery.GalleryMap, error) {
			return gallery.GalleryMap{"t": "http://i.com/x.png"}, nil
		},
	}
	h.Digger = digger
	h.Rules = &fakeRules{
		evaluate: func(gallery.GalleryMap, string) Evaluation {
			return Evaluation{Map: gallery.GalleryMap{}, Options: gallery.DigOptions{}}
		},
	}

	outcome, err := h.DigGallery(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if len(digger.calls) != 1 || digger.calls[0].Options != (gallery.DigOptions{Scrape: true, Dig: true}) {
		t.Fatalf("digger should be called once with both options on, got %+v", digger.calls)
	}

	if len(downloads.batches) != 1 || len(downloads.batches[0]) != 1 {
		t.Fatalf("expected one batch with one entry, got %v", downloads.batches)
	}

	if downloads.dirs[0] != outcome.DownloadsDir {
		t.Errorf("output:\n\t%q\nwant:\n\t%q", downloads.dirs[0], outcome.DownloadsDir)
	}

	if !reflect.DeepEqual(sink.downloading, []string{"1"}) {
		t.Errorf("output:\n\t%v\nwant:\n\t%v", sink.downloading, []string{"1"})
	}

	checkFinalized(t, h, sink, store, RunDigging)
}

func TestScrapeShortCircuit(t *testing.T) {
	h, sink, store, downloads := newTestHarvester(gallery.GalleryMap{"t": "http://i.com/page-given.jpg"})

	scraper := &fakeExtractor{}
	h.Scraper = scraper
	h.Rules = &fakeRules{
		evaluate: func(rawMap gallery.GalleryMap, _ string) Evaluation {
			return Evaluation{Map: rawMap, Options: gallery.DigOptions{Scrape: false, Dig: true}}
		},
	}

	if _, err := h.Scrape(context.Background(), gallery.AllMedia); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if len(scraper.calls) != 0 {
		t.Errorf("scraper should not be called, got %d calls", len(scraper.calls))
	}

	if len(downloads.batches) != 1 || downloads.batches[0][0].SourceURI != "http://i.com/page-given.jpg" {
		t.Errorf("page given entry should be downloaded, got %v", downloads.batches)
	}

	checkFinalized(t, h, sink, store, RunScraping)
}

func TestScrapeFileOptionsAlwaysScrapes(t *testing.T) {
	h, sink, store, _ := newTestHarvester(gallery.GalleryMap{"t": "http://i.com/page-given.jpg"})

	scraper := &fakeExtractor{
		fn: func(_ context.Context, _ gallery.LocDoc, req ExtractRequest) (gallery.GalleryMap, error) {
			result := req.Seed.Clone()
			result["http://i.com/scraped.jpg"] = "http://i.com/scraped.jpg"
			return result, nil
		},
	}
	h.Scraper = scraper
	h.Rules = &fakeRules{
		evaluate: func(rawMap gallery.GalleryMap, _ string) Evaluation {
			return Evaluation{Map: rawMap, Options: gallery.DigOptions{Scrape: false, Dig: false}}
		},
	}

	outcome, err := h.ScrapeFileOptions(context.Background(), gallery.AllMedia)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if len(scraper.calls) != 1 {
		t.Fatalf("output:\n\t%d\nwant:\n\t%d", len(scraper.calls), 1)
	}
	if !scraper.calls[0].Options.Scrape {
		t.Errorf("scraper called without scrape option: %+v", scraper.calls[0].Options)
	}
	if scraper.calls[0].Seed["t"] != "http://i.com/page-given.jpg" {
		t.Errorf("page given entries should seed scraping, got %v", scraper.calls[0].Seed)
	}

	if count := outcome.Registry.Count(); count != 2 {
		t.Errorf("output:\n\t%d\nwant:\n\t%d", count, 2)
	}

	checkFinalized(t, h, sink, store, RunScraping)
}

func TestDownloadFailureDoesNotFailRun(t *testing.T) {
	h, sink, store, downloads := newTestHarvester(gallery.GalleryMap{"t": "http://i.com/a.jpg"})
	downloads.err = errors.New("connection reset")

	if _, err := h.DigGallery(context.Background()); err != nil {
		t.Fatalf("download failure should not fail run: %s", err)
	}

	if sink.lastProgress() == msgInternalError {
		t.Errorf("download failure should not be reported as internal error")
	}

	checkFinalized(t, h, sink, store, RunDigging)
}

func TestFinalizerRunsOnFailure(t *testing.T) {
	testCases := []struct {
		name    string
		setup   func(h *Harvester)
		wantErr error
	}{
		{
			name: "acquire",
			setup: func(h *Harvester) {
				h.Pages = &fakeProvider{err: errors.New("no active tab")}
			},
			wantErr: gallery.ErrContextUnavailable,
		},
		{
			name: "missing location",
			setup: func(h *Harvester) {
				h.Pages = &fakeProvider{probe: &PageProbe{}}
			},
			wantErr: gallery.ErrContextUnavailable,
		},
		{
			name: "fetch",
			setup: func(h *Harvester) {
				h.Pages = &fakeProvider{probe: &PageProbe{Location: mustURL(testPage)}}
				h.Fetcher = &fakeFetcher{fail: map[string]bool{testPage: true}}
			},
			wantErr: gallery.ErrFetchFailed,
		},
		{
			name: "extract",
			setup: func(h *Harvester) {
				h.Digger = &fakeExtractor{
					fn: func(context.Context, gallery.LocDoc, ExtractRequest) (gallery.GalleryMap, error) {
						return nil, errors.New("selector exploded")
					},
				}
			},
			wantErr: gallery.ErrExtractionFailed,
		},
	}

	for _, tc := range testCases {
		h, sink, store, _ := newTestHarvester(nil)
		tc.setup(h)

		_, err := h.DigFileOptions(context.Background())
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
		}

		if sink.lastProgress() != msgInternalError {
			t.Errorf("%s, output:\n\t%q\nwant:\n\t%q", tc.name, sink.lastProgress(), msgInternalError)
		}

		checkFinalized(t, h, sink, store, RunDigging)
	}
}

func TestPersistFailureIsSwallowed(t *testing.T) {
	h, sink, store, _ := newTestHarvester(gallery.GalleryMap{"t": "http://i.com/a.jpg"})
	store.err = errors.New("disk full")

	if _, err := h.DigFileOptions(context.Background()); err != nil {
		t.Fatalf("persist failure should not fail run: %s", err)
	}

	checkFinalized(t, h, sink, store, RunDigging)
}

func TestSingleFlight(t *testing.T) {
	h, sink, store, _ := newTestHarvester(nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	h.Digger = &fakeExtractor{
		fn: func(_ context.Context, _ gallery.LocDoc, req ExtractRequest) (gallery.GalleryMap, error) {
			close(entered)
			<-release
			return gallery.GalleryMap{"t": "http://i.com/a.jpg"}, nil
		},
	}

	done := make(chan error)
	go func() {
		_, err := h.DigFileOptions(context.Background())
		done <- err
	}()

	<-entered

	if h.Stage() != StageHarvesting {
		t.Errorf("output:\n\t%s\nwant:\n\t%s", h.Stage(), StageHarvesting)
	}

	if _, err := h.Scrape(context.Background(), gallery.AllMedia); !errors.Is(err, gallery.ErrRunActive) {
		t.Errorf("second run should be rejected, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %s", err)
	}

	checkFinalized(t, h, sink, store, RunDigging)
}

func TestStop(t *testing.T) {
	h, sink, store, _ := newTestHarvester(gallery.GalleryMap{"t": "http://i.com/a.jpg"})

	entered := make(chan struct{})
	h.Digger = &fakeExtractor{
		fn: func(ctx context.Context, _ gallery.LocDoc, _ ExtractRequest) (gallery.GalleryMap, error) {
			close(entered)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return nil, errors.New("run was not stopped")
			}
		},
	}

	done := make(chan error)
	go func() {
		_, err := h.DigFileOptions(context.Background())
		done <- err
	}()

	<-entered
	if !h.Stop() {
		t.Fatalf("stop should find an active run")
	}

	if err := <-done; !errors.Is(err, gallery.ErrStopped) {
		t.Fatalf("expected stop error, got %v", err)
	}

	if h.Stop() {
		t.Errorf("stop should report no active run")
	}

	if store.last["t"] != "http://i.com/a.jpg" {
		t.Errorf("decided map should be persisted, got %v", store.last)
	}

	checkFinalized(t, h, sink, store, RunDigging)
}

func TestResume(t *testing.T) {
	h, sink, store, downloads := newTestHarvester(nil)
	store.last = gallery.GalleryMap{"t1": "http://i.com/a.jpg", "t2": "http://i.com/b.jpg"}

	outcome, err := h.Resume(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if len(outcome.Options) != 2 || store.saves != 0 {
		t.Fatalf("expected 2 options and no save, got %d options, %d saves", len(outcome.Options), store.saves)
	}

	if err := outcome.Registry.Dispatch(context.Background(), "2"); err != nil {
		t.Fatalf("dispatch failed: %s", err)
	}

	if !reflect.DeepEqual(downloads.single, []string{"http://i.com/b.jpg"}) {
		t.Errorf("output:\n\t%v\nwant:\n\t%v", downloads.single, []string{"http://i.com/b.jpg"})
	}

	if !reflect.DeepEqual(sink.downloading, []string{"2"}) {
		t.Errorf("output:\n\t%v\nwant:\n\t%v", sink.downloading, []string{"2"})
	}
}
