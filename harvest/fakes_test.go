package harvest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/SirZenith/gimme/gallery"
)

func mustDoc(html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		panic(err)
	}
	return doc
}

func mustURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

type fakeProvider struct {
	probe     *PageProbe
	err       error
	described gallery.ProbeDescriptor
}

func (p *fakeProvider) Acquire(_ context.Context, describe DescribeFunc) (*PageProbe, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.probe != nil && p.probe.Location != nil {
		p.described = describe(p.probe.Location.String())
	}
	return p.probe, nil
}

type fakeFetcher struct {
	lock  sync.Mutex
	fail  map[string]bool
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, uri string) (*goquery.Document, error) {
	f.lock.Lock()
	f.calls = append(f.calls, uri)
	f.lock.Unlock()

	if f.fail[uri] {
		return nil, fmt.Errorf("%w: status 404 for %s", gallery.ErrFetchFailed, uri)
	}

	return mustDoc("<html><body><p>" + uri + "</p></body></html>"), nil
}

type extractFunc func(ctx context.Context, locDoc gallery.LocDoc, req ExtractRequest) (gallery.GalleryMap, error)

type fakeExtractor struct {
	lock  sync.Mutex
	fn    extractFunc
	calls []ExtractRequest
}

func (e *fakeExtractor) Extract(ctx context.Context, locDoc gallery.LocDoc, req ExtractRequest) (gallery.GalleryMap, error) {
	e.lock.Lock()
	e.calls = append(e.calls, req)
	e.lock.Unlock()

	if e.fn == nil {
		return req.Seed, nil
	}

	return e.fn(ctx, locDoc, req)
}

type fakeRules struct {
	evaluate func(rawMap gallery.GalleryMap, pageURI string) Evaluation
	probe    gallery.ProbeDescriptor
}

func (r *fakeRules) Evaluate(rawMap gallery.GalleryMap, pageURI string) Evaluation {
	if r.evaluate == nil {
		return Evaluation{Map: rawMap, Options: gallery.DefaultDigOptions()}
	}
	return r.evaluate(rawMap, pageURI)
}

func (r *fakeRules) Describe(_ string) gallery.ProbeDescriptor {
	return r.probe
}

type fakeDownloads struct {
	lock    sync.Mutex
	batches [][]DownloadEntry
	dirs    []string
	single  []string
	err     error
}

func (d *fakeDownloads) DownloadBatch(_ context.Context, dir string, entries []DownloadEntry) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.dirs = append(d.dirs, dir)
	d.batches = append(d.batches, entries)

	return d.err
}

func (d *fakeDownloads) DownloadOne(_ context.Context, uri string, _ string) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.single = append(d.single, uri)

	return d.err
}

type runningEvent struct {
	kind    RunKind
	running bool
}

type recordSink struct {
	lock        sync.Mutex
	progress    []string
	badges      []int
	choices     [][]*FileOption
	downloading []string
	clears      int
	running     []runningEvent
}

func (s *recordSink) SetProgress(text string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.progress = append(s.progress, text)
}

func (s *recordSink) SetBadgeCount(n int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.badges = append(s.badges, n)
}

func (s *recordSink) ShowChoices(options []*FileOption) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.choices = append(s.choices, options)
}

func (s *recordSink) ShowDownloading(id string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.downloading = append(s.downloading, id)
}

func (s *recordSink) ClearChoices() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.clears++
}

func (s *recordSink) SetRunning(kind RunKind, running bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.running = append(s.running, runningEvent{kind, running})
}

func (s *recordSink) lastProgress() string {
	s.lock.Lock()
	defer s.lock.Unlock()

	if len(s.progress) == 0 {
		return ""
	}
	return s.progress[len(s.progress)-1]
}

type memStore struct {
	lock  sync.Mutex
	saves int
	last  gallery.GalleryMap
	err   error
}

func (s *memStore) Save(_ context.Context, m gallery.GalleryMap) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.saves++
	s.last = m.Clone()

	return s.err
}

func (s *memStore) Load(_ context.Context) (gallery.GalleryMap, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.last.Clone(), s.err
}
