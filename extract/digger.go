package extract

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/SirZenith/gimme/gallery"
	"github.com/SirZenith/gimme/harvest"
	"github.com/SirZenith/gimme/rules"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// SiteRules is the part of rule evaluator used by digger.
type SiteRules interface {
	BadFilter
	Describe(pageURI string) gallery.ProbeDescriptor
	Blessing(pageURI string) (rules.Blessing, bool)
}

// Digger finds thumbnail/link pairs on gallery pages, and follows links that
// point to detail pages to find full-sized media on them.
type Digger struct {
	Fetcher harvest.DocumentFetcher
	Rules   SiteRules

	MinZoomWidth  int
	MinZoomHeight int
	Channels      int // number of detail pages dug at the same time
}

// NewDigger creates digger with parameters taken from rule config.
func NewDigger(fetcher harvest.DocumentFetcher, evaluator *rules.Evaluator) *Digger {
	config := evaluator.Config()

	return &Digger{
		Fetcher:       fetcher,
		Rules:         evaluator,
		MinZoomWidth:  int(config.MinZoomWidth),
		MinZoomHeight: int(config.MinZoomHeight),
		Channels:      int(config.DlChannels),
	}
}

func (d *Digger) Extract(ctx context.Context, locDoc gallery.LocDoc, req harvest.ExtractRequest) (gallery.GalleryMap, error) {
	result := gallery.GalleryMap{}

	if req.Options.Scrape && locDoc.Document != nil {
		pairs := d.Pairs(locDoc)
		log.Debugf("found %d thumbnail link(s) on %s", len(pairs), locDoc.URI())
		gallery.Merge(result, pairs)
	}

	gallery.Merge(result, req.Seed)

	if req.Options.Dig {
		dug, err := d.Dig(ctx, result)
		if err != nil {
			return nil, err
		}
		result = dug
	}

	return d.filter(result), nil
}

// Pairs collects thumbnail/link pairs of a page, using site message rule when
// there is one.
func (d *Digger) Pairs(locDoc gallery.LocDoc) gallery.GalleryMap {
	probe := gallery.ProbeDescriptor{}
	if d.Rules != nil {
		probe = d.Rules.Describe(locDoc.URI())
	}

	if probe.IsZero() {
		probe = gallery.DefaultProbe
	}

	return CollectPairs(locDoc.Document, locDoc.Location, probe)
}

// Dig replaces every target that is not a media file with full-sized media
// found on that target page. Entries whose page yields nothing are dropped.
func (d *Digger) Dig(ctx context.Context, m gallery.GalleryMap) (gallery.GalleryMap, error) {
	result := gallery.GalleryMap{}

	var lock sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(1, d.Channels))

	for _, thumb := range m.Keys() {
		target := m[thumb]

		if IsMediaURI(target) || d.Fetcher == nil {
			lock.Lock()
			result[thumb] = target
			lock.Unlock()
			continue
		}

		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			zoom, err := d.zoomOf(groupCtx, target)
			if err != nil {
				log.Debugf("dig %s failed: %s", target, err)
				return nil
			}

			lock.Lock()
			defer lock.Unlock()

			if zoom == "" {
				log.Debugf("no full-sized media on %s", target)
				return nil
			}

			result[thumb] = zoom

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (d *Digger) zoomOf(ctx context.Context, pageURI string) (string, error) {
	doc, err := d.Fetcher.Fetch(ctx, pageURI)
	if err != nil {
		return "", err
	}

	base, err := url.Parse(pageURI)
	if err != nil {
		return "", err
	}

	return d.FindZoom(doc, base), nil
}

// FindZoom looks for full-sized media on a detail page. Site blessing is used
// when present, otherwise the largest big enough image wins, then page's
// og:image, then its first video.
func (d *Digger) FindZoom(doc *goquery.Document, base *url.URL) string {
	if d.Rules != nil {
		if blessing, ok := d.Rules.Blessing(base.String()); ok {
			attr := attrOrSrc(blessing.Src)
			if value, ok := doc.Find(blessing.Zoom).First().Attr(attr); ok {
				if uri := resolveURI(base, value); uri != "" {
					return uri
				}
			}
		}
	}

	best, bestArea := "", -1
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := resolveURI(base, firstAttr(img, "data-src", "src"))
		if src == "" || d.knownBad(src) {
			return
		}

		width, hasWidth := intAttr(img, "width")
		height, hasHeight := intAttr(img, "height")

		area := 0
		if hasWidth && hasHeight {
			if width < d.MinZoomWidth || height < d.MinZoomHeight {
				return
			}
			area = width * height
		}

		if area > bestArea {
			best, bestArea = src, area
		}
	})

	if best != "" {
		return best
	}

	if content, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
		if uri := resolveURI(base, content); uri != "" && !d.knownBad(uri) {
			return uri
		}
	}

	video := doc.Find("video[src], video source[src]").First()
	if src, ok := video.Attr("src"); ok {
		return resolveURI(base, src)
	}

	return ""
}

func (d *Digger) knownBad(uri string) bool {
	return d.Rules != nil && d.Rules.KnownBad(uri)
}

func (d *Digger) filter(m gallery.GalleryMap) gallery.GalleryMap {
	if d.Rules == nil {
		return m
	}

	for thumb, target := range m {
		if d.Rules.KnownBad(target) {
			log.Debugf("skip known bad target: %s", target)
			delete(m, thumb)
		}
	}

	return m
}

func attrOrSrc(attr string) string {
	if attr == "" {
		return "src"
	}
	return attr
}

func firstAttr(sel *goquery.Selection, names ...string) string {
	for _, name := range names {
		if value, ok := sel.Attr(name); ok && strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func intAttr(sel *goquery.Selection, name string) (int, bool) {
	value, ok := sel.Attr(name)
	if !ok {
		return 0, false
	}

	num, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(value), "px"))
	if err != nil {
		return 0, false
	}

	return num, true
}
