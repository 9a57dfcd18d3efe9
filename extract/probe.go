package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/SirZenith/gimme/gallery"
)

// CollectPairs gathers thumbnail/link pairs from document following given probe
// descriptor. For every link element matched by LinkSelector, thumbnail is
// looked up with ThumbSelector inside that link. Links without thumbnail are
// skipped. Values are resolved against `base` unless UseRawValues is set.
func CollectPairs(doc *goquery.Document, base *url.URL, probe gallery.ProbeDescriptor) gallery.GalleryMap {
	result := gallery.GalleryMap{}
	if doc == nil || probe.IsZero() {
		return result
	}

	linkAttr := probe.LinkAttr
	if linkAttr == "" {
		linkAttr = "href"
	}

	thumbAttr := probe.ThumbAttr
	if thumbAttr == "" {
		thumbAttr = "src"
	}

	doc.Find(probe.LinkSelector).Each(func(_ int, link *goquery.Selection) {
		target, ok := link.Attr(linkAttr)
		if !ok {
			return
		}

		thumbSel := link
		if probe.ThumbSelector != "" {
			thumbSel = link.Find(probe.ThumbSelector).First()
		}

		thumb, ok := thumbSel.Attr(thumbAttr)
		if !ok {
			return
		}

		if !probe.UseRawValues {
			target = resolveURI(base, target)
			thumb = resolveURI(base, thumb)
		} else {
			target = strings.TrimSpace(target)
			thumb = strings.TrimSpace(thumb)
		}

		if target == "" || thumb == "" {
			return
		}

		result[thumb] = target
	})

	return result
}
