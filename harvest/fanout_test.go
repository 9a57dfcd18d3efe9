package harvest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/SirZenith/gimme/gallery"
)

// pageDigger returns entries keyed by page URI on the first pass and echoes
// seed on the second one.
func pageDigger(pages map[string]gallery.GalleryMap, failing map[string]bool) *fakeExtractor {
	return &fakeExtractor{
		fn: func(_ context.Context, locDoc gallery.LocDoc, req ExtractRequest) (gallery.GalleryMap, error) {
			uri := locDoc.URI()
			if failing[uri] {
				return nil, fmt.Errorf("%w: broken markup in %s", gallery.ErrExtractionFailed, uri)
			}

			if req.Options.Scrape && !req.Options.Dig {
				return pages[uri].Clone(), nil
			}

			return req.Seed, nil
		},
	}
}

func TestReduceIsolatesFailures(t *testing.T) {
	fetcher := &fakeFetcher{fail: map[string]bool{"http://g.com/p2": true}}
	digger := pageDigger(map[string]gallery.GalleryMap{
		"http://g.com/p1": {"a": "http://i.com/a.jpg"},
		"http://g.com/p3": {"c": "http://i.com/c.jpg"},
		"http://g.com/p4": {"d": "http://i.com/d.jpg"},
	}, map[string]bool{"http://g.com/p3": true})

	reducer := Reducer{
		Fetcher: fetcher,
		Digger:  digger,
		Rules:   &fakeRules{},
		Sink:    &recordSink{},
	}

	combined, report, err := reducer.Reduce(context.Background(), []string{
		"http://g.com/p1",
		"http://g.com/p2",
		"http://g.com/p3",
		"http://g.com/p4",
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	want := gallery.GalleryMap{"a": "http://i.com/a.jpg", "d": "http://i.com/d.jpg"}
	if !reflect.DeepEqual(combined, want) {
		t.Errorf("output:\n\t%v\nwant:\n\t%v", combined, want)
	}

	if report.Attempted != 4 || report.Loaded != 3 || report.Dug != 2 || len(report.Failures) != 2 {
		t.Errorf("unexpected report: %+v", report)
	}

	stages := map[string]string{}
	for _, failure := range report.Failures {
		stages[failure.URI] = failure.Stage
	}
	wantStages := map[string]string{"http://g.com/p2": "load", "http://g.com/p3": "dig"}
	if !reflect.DeepEqual(stages, wantStages) {
		t.Errorf("output:\n\t%v\nwant:\n\t%v", stages, wantStages)
	}
}

func TestReduceMergeFollowsListOrder(t *testing.T) {
	pages := map[string]gallery.GalleryMap{
		"http://g.com/p1": {"k": "http://i.com/first.jpg"},
		"http://g.com/p2": {"k": "http://i.com/second.jpg"},
	}

	for _, parallelism := range []int{0, 1, 4} {
		reducer := Reducer{
			Fetcher:     &fakeFetcher{},
			Digger:      pageDigger(pages, nil),
			Rules:       &fakeRules{},
			Parallelism: parallelism,
		}

		combined, _, err := reducer.Reduce(context.Background(), []string{"http://g.com/p1", "http://g.com/p2"})
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		if combined["k"] != "http://i.com/second.jpg" {
			t.Errorf("parallelism %d, output:\n\t%q\nwant:\n\t%q", parallelism, combined["k"], "http://i.com/second.jpg")
		}
	}
}

func TestReduceEmptyList(t *testing.T) {
	reducer := Reducer{Fetcher: &fakeFetcher{}, Digger: &fakeExtractor{}, Rules: &fakeRules{}}

	combined, report, err := reducer.Reduce(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if len(combined) != 0 || report.Attempted != 0 {
		t.Errorf("expected empty result, got %v, %+v", combined, report)
	}
}

func TestReduceUsesRuleDecision(t *testing.T) {
	digger := pageDigger(map[string]gallery.GalleryMap{
		"http://g.com/p1": {"t": "http://i.com/raw.jpg"},
	}, nil)

	rules := &fakeRules{
		evaluate: func(rawMap gallery.GalleryMap, _ string) Evaluation {
			return Evaluation{
				Map:     gallery.GalleryMap{"t": "http://i.com/refined.jpg"},
				Options: gallery.DigOptions{Scrape: false, Dig: true},
			}
		},
	}

	reducer := Reducer{Fetcher: &fakeFetcher{}, Digger: digger, Rules: rules}
	combined, _, err := reducer.Reduce(context.Background(), []string{"http://g.com/p1"})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if combined["t"] != "http://i.com/refined.jpg" {
		t.Errorf("output:\n\t%q\nwant:\n\t%q", combined["t"], "http://i.com/refined.jpg")
	}

	last := digger.calls[len(digger.calls)-1]
	if last.Options != (gallery.DigOptions{Scrape: false, Dig: true}) {
		t.Errorf("second dig should use decided options, got %+v", last.Options)
	}
}

func TestReduceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	digger := &fakeExtractor{
		fn: func(_ context.Context, locDoc gallery.LocDoc, req ExtractRequest) (gallery.GalleryMap, error) {
			if req.Options.Dig {
				// stop after first page has been dug
				cancel()
				return req.Seed, nil
			}
			return gallery.GalleryMap{locDoc.URI(): locDoc.URI() + "/img.jpg"}, nil
		},
	}

	reducer := Reducer{Fetcher: &fakeFetcher{}, Digger: digger, Rules: &fakeRules{}}
	combined, _, err := reducer.Reduce(ctx, []string{"http://g.com/p1", "http://g.com/p2"})
	if !errors.Is(err, gallery.ErrStopped) {
		t.Fatalf("expected stop error, got %v", err)
	}

	want := gallery.GalleryMap{"http://g.com/p1": "http://g.com/p1/img.jpg"}
	if !reflect.DeepEqual(combined, want) {
		t.Errorf("output:\n\t%v\nwant:\n\t%v", combined, want)
	}
}

// gatedFetcher holds back the first page until every other page got fetched,
// so pages finish loading in reversed order.
type gatedFetcher struct {
	first   string
	waitFor int
	fail    map[string]bool

	lock    sync.Mutex
	fetched int
	gate    chan struct{}
}

func (f *gatedFetcher) Fetch(ctx context.Context, uri string) (*goquery.Document, error) {
	if uri == f.first {
		select {
		case <-f.gate:
		case <-time.After(5 * time.Second):
		}
	} else {
		f.lock.Lock()
		f.fetched++
		if f.fetched == f.waitFor {
			close(f.gate)
		}
		f.lock.Unlock()
	}

	if f.fail[uri] {
		return nil, fmt.Errorf("%w: status 500 for %s", gallery.ErrFetchFailed, uri)
	}

	return mustDoc("<p>" + uri + "</p>"), nil
}

func TestReduceParallelReportsInListOrder(t *testing.T) {
	uris := []string{"http://g.com/p1", "http://g.com/p2", "http://g.com/p3", "http://g.com/p4"}

	fetcher := &gatedFetcher{
		first:   uris[0],
		waitFor: len(uris) - 1,
		fail:    map[string]bool{"http://g.com/p1": true, "http://g.com/p3": true},
		gate:    make(chan struct{}),
	}
	sink := &recordSink{}

	reducer := Reducer{
		Fetcher:     fetcher,
		Digger:      pageDigger(map[string]gallery.GalleryMap{}, nil),
		Rules:       &fakeRules{},
		Sink:        sink,
		Parallelism: 4,
	}

	_, report, err := reducer.Reduce(context.Background(), uris)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	wantFailures := []string{"http://g.com/p1", "http://g.com/p3"}
	failures := []string{}
	for _, failure := range report.Failures {
		failures = append(failures, failure.URI)
	}
	if !reflect.DeepEqual(failures, wantFailures) {
		t.Errorf("output:\n\t%v\nwant:\n\t%v", failures, wantFailures)
	}

	loadMsgs := []string{}
	for _, msg := range sink.progress {
		if strings.HasPrefix(msg, "Loading gallery page") || strings.HasPrefix(msg, "Failed to load gallery page") {
			loadMsgs = append(loadMsgs, msg)
		}
	}
	wantMsgs := []string{
		"Failed to load gallery page http://g.com/p1",
		"Loading gallery page http://g.com/p2",
		"Failed to load gallery page http://g.com/p3",
		"Loading gallery page http://g.com/p4",
	}
	if !reflect.DeepEqual(loadMsgs, wantMsgs) {
		t.Errorf("output:\n\t%v\nwant:\n\t%v", loadMsgs, wantMsgs)
	}
}

func TestReduceWithoutFetcher(t *testing.T) {
	reducer := Reducer{Digger: &fakeExtractor{}, Rules: &fakeRules{}}

	combined, report, err := reducer.Reduce(context.Background(), []string{"http://g.com/p1"})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if len(combined) != 0 || len(report.Failures) != 1 {
		t.Fatalf("unexpected result: %v, %+v", combined, report)
	}

	if !errors.Is(report.Failures[0].Err, gallery.ErrFetchFailed) {
		t.Errorf("output:\n\t%v\nwant:\n\t%v", report.Failures[0].Err, gallery.ErrFetchFailed)
	}
}
