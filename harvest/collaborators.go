package harvest

import (
	"context"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/SirZenith/gimme/gallery"
)

// PageProbe is what a page context provider knows about the target page.
// Document may be nil, in which case the page is fetched by location.
type PageProbe struct {
	Location *url.URL
	Links    gallery.GalleryMap
	Document *goquery.Document
}

// DescribeFunc returns probe descriptor used for page with given URI.
type DescribeFunc func(pageURI string) gallery.ProbeDescriptor

type PageContextProvider interface {
	Acquire(ctx context.Context, describe DescribeFunc) (*PageProbe, error)
}

// ExtractRequest carries per call input of an extraction strategy.
type ExtractRequest struct {
	Options gallery.DigOptions
	Media   gallery.MediaOptions
	Seed    gallery.GalleryMap // mapping already known for the page
}

type Extractor interface {
	Extract(ctx context.Context, locDoc gallery.LocDoc, req ExtractRequest) (gallery.GalleryMap, error)
}

// Evaluation is the result of applying site rules to a raw mapping.
type Evaluation struct {
	Map     gallery.GalleryMap
	Options gallery.DigOptions
}

// RuleEvaluator must not fail, a page without matching rule gets raw map back
// unchanged with default options.
type RuleEvaluator interface {
	Evaluate(rawMap gallery.GalleryMap, pageURI string) Evaluation
	// Describe returns probe descriptor for a site, zero value when there is
	// none.
	Describe(pageURI string) gallery.ProbeDescriptor
}

type DocumentFetcher interface {
	Fetch(ctx context.Context, uri string) (*goquery.Document, error)
}

// DownloadEntry is one file to be downloaded.
type DownloadEntry struct {
	ID        string
	SourceURI string
	ThumbURI  string
	DestPath  string
}

type DownloadSink interface {
	DownloadBatch(ctx context.Context, dir string, entries []DownloadEntry) error
	DownloadOne(ctx context.Context, uri string, destPath string) error
}

// RunKind tells presentation layer which kind of run is active.
type RunKind int

const (
	RunScraping RunKind = iota
	RunDigging
)

func (k RunKind) String() string {
	switch k {
	case RunScraping:
		return "scraping"
	case RunDigging:
		return "digging"
	default:
		return "unknown"
	}
}

type PresentationSink interface {
	SetProgress(text string)
	SetBadgeCount(n int)
	ShowChoices(options []*FileOption)
	ShowDownloading(id string)
	ClearChoices()
	SetRunning(kind RunKind, running bool)
}

type StateStore interface {
	Save(ctx context.Context, m gallery.GalleryMap) error
	Load(ctx context.Context) (gallery.GalleryMap, error)
}
