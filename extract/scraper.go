package extract

import (
	"context"
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/SirZenith/gimme/gallery"
	"github.com/SirZenith/gimme/harvest"
	"github.com/charmbracelet/log"
)

var scriptURIRe = regexp.MustCompile(`(?i)(?:https?:)?//[^\s"'<>()\\]+?\.(?:jpe?g|png|gif|webp|bmp|avif|mp4|webm|mov|m4v|mp3|ogg|wav|m4a)(?:\?[^\s"'<>()\\]*)?`)

// Scraper collects media URIs referenced directly by a page. Every scraped
// URI is both thumbnail and target of its entry.
type Scraper struct {
	Filter BadFilter
}

func NewScraper(filter BadFilter) *Scraper {
	return &Scraper{Filter: filter}
}

func (s *Scraper) Extract(ctx context.Context, locDoc gallery.LocDoc, req harvest.ExtractRequest) (gallery.GalleryMap, error) {
	result := req.Seed.Clone()
	if !req.Options.Scrape || locDoc.Document == nil {
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	found := s.Scrape(locDoc.Document, locDoc.Location, req.Media)
	for _, uri := range found {
		if _, ok := result[uri]; !ok {
			result[uri] = uri
		}
	}

	log.Debugf("scraped %d uri(s) from %s", len(found), locDoc.URI())

	return result, nil
}

// Scrape returns de-duplicated media URIs in document order.
func (s *Scraper) Scrape(doc *goquery.Document, base *url.URL, media gallery.MediaOptions) []string {
	seen := map[string]bool{}
	result := []string{}

	add := func(ref string, check func(string) bool) {
		uri := resolveURI(base, ref)
		if uri == "" || seen[uri] {
			return
		}
		if check != nil && !check(uri) {
			return
		}
		if s.Filter != nil && s.Filter.KnownBad(uri) {
			log.Debugf("skip known bad uri: %s", uri)
			return
		}

		seen[uri] = true
		result = append(result, uri)
	}

	if media.Images {
		doc.Find("img, input[type=image]").Each(func(_ int, img *goquery.Selection) {
			for _, attr := range []string{"src", "data-src", "data-original", "data-lazy-src"} {
				if value, ok := img.Attr(attr); ok {
					add(value, nil)
				}
			}

			if srcset, ok := img.Attr("srcset"); ok {
				for _, uri := range srcsetURIs(srcset) {
					add(uri, nil)
				}
			}
		})

		doc.Find("picture source[srcset]").Each(func(_ int, source *goquery.Selection) {
			srcset, _ := source.Attr("srcset")
			for _, uri := range srcsetURIs(srcset) {
				add(uri, nil)
			}
		})

		doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
			href, _ := link.Attr("href")
			add(href, IsImageURI)
		})
	}

	if media.CSSBackgrounds {
		doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
			style, _ := sel.Attr("style")
			for _, uri := range cssURLs(style, true) {
				add(uri, nil)
			}
		})

		doc.Find("style").Each(func(_ int, sel *goquery.Selection) {
			for _, uri := range cssURLs(sel.Text(), false) {
				add(uri, IsMediaURI)
			}
		})
	}

	if media.Videos {
		scrapeSources(doc, "video", add)
	}

	if media.Audios {
		scrapeSources(doc, "audio", add)
	}

	if media.Scripts {
		doc.Find("script").Each(func(_ int, script *goquery.Selection) {
			for _, uri := range scriptURIRe.FindAllString(script.Text(), -1) {
				add(uri, nil)
			}
		})
	}

	if media.QueryString {
		doc.Find("a[href], img[src]").Each(func(_ int, sel *goquery.Selection) {
			value, ok := sel.Attr("href")
			if !ok {
				value, _ = sel.Attr("src")
			}

			for _, uri := range queryStringURIs(resolveURI(base, value)) {
				add(uri, IsMediaURI)
			}
		})
	}

	return result
}

func scrapeSources(doc *goquery.Document, tag string, add func(string, func(string) bool)) {
	doc.Find(tag).Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok {
			add(src, nil)
		}

		sel.Find("source[src]").Each(func(_ int, source *goquery.Selection) {
			src, _ := source.Attr("src")
			add(src, nil)
		})
	})
}

// queryStringURIs returns absolute URIs carried in query parameters of `uri`.
func queryStringURIs(uri string) []string {
	result := []string{}
	if uri == "" {
		return result
	}

	u, err := url.Parse(uri)
	if err != nil {
		return result
	}

	for _, values := range u.Query() {
		for _, value := range values {
			inner, err := url.Parse(value)
			if err != nil || inner.Host == "" {
				continue
			}
			if inner.Scheme != "http" && inner.Scheme != "https" {
				continue
			}
			result = append(result, inner.String())
		}
	}

	return result
}
