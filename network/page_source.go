package network

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/PuerkitoBio/goquery"
	"github.com/SirZenith/gimme/extract"
	"github.com/SirZenith/gimme/gallery"
	"github.com/SirZenith/gimme/harvest"
	"github.com/charmbracelet/log"
)

// PageSource provides page context of one target page. Page content comes
// from a saved snapshot file when one is given, otherwise the page is left for
// orchestrator to fetch by location.
type PageSource struct {
	URL          string
	SnapshotPath string
	Fetcher      harvest.DocumentFetcher
}

func (s *PageSource) Acquire(ctx context.Context, describe harvest.DescribeFunc) (*harvest.PageProbe, error) {
	loc, err := parsePageURL(s.URL)
	if err != nil {
		return nil, err
	}

	var doc *goquery.Document
	switch {
	case s.SnapshotPath != "":
		doc, err = readSnapshot(s.SnapshotPath)
	case s.Fetcher != nil:
		doc, err = s.Fetcher.Fetch(ctx, loc.String())
	}
	if err != nil {
		return nil, err
	}

	return newPageProbe(loc, doc, describe), nil
}

func parsePageURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: no page URL given", gallery.ErrContextUnavailable)
	}

	loc, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid page URL %q: %s", gallery.ErrContextUnavailable, raw, err)
	}

	if !loc.IsAbs() {
		return nil, fmt.Errorf("%w: page URL %q is not absolute", gallery.ErrContextUnavailable, raw)
	}

	return loc, nil
}

func readSnapshot(snapshotPath string) (*goquery.Document, error) {
	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read page snapshot %s: %s", gallery.ErrContextUnavailable, snapshotPath, err)
	}

	return ParseDocument(data, "text/html")
}

// newPageProbe collects probe links from document with descriptor given by
// describe callback.
func newPageProbe(loc *url.URL, doc *goquery.Document, describe harvest.DescribeFunc) *harvest.PageProbe {
	probe := &harvest.PageProbe{
		Location: loc,
		Links:    gallery.GalleryMap{},
		Document: doc,
	}

	if doc == nil || describe == nil {
		return probe
	}

	descriptor := describe(loc.String())
	if descriptor.IsZero() {
		return probe
	}

	probe.Links = extract.CollectPairs(doc, loc, descriptor)
	log.Debugf("probe on %s found %d link(s)", loc, len(probe.Links))

	return probe
}
