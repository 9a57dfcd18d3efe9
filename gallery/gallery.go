// Package gallery holds the data shared by every stage of a harvest: the
// thumbnail to target mapping, dig options and the page context handed from
// one stage to the next.
package gallery

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// GalleryMap maps a thumbnail/reference URI to the best known target URI for
// it.
type GalleryMap map[string]string

// Merge copies every entry of each source into dst in argument order, later
// sources overwrite earlier ones on conflicting keys. A nil dst is allocated.
func Merge(dst GalleryMap, sources ...GalleryMap) GalleryMap {
	if dst == nil {
		dst = GalleryMap{}
	}

	for _, src := range sources {
		for thumb, target := range src {
			dst[thumb] = target
		}
	}

	return dst
}

// Clone returns a shallow copy of the map, never nil.
func (m GalleryMap) Clone() GalleryMap {
	return Merge(make(GalleryMap, len(m)), m)
}

// Keys returns thumbnail URIs in sorted order.
func (m GalleryMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}

// Targets returns target URIs ordered by their keys. Blank targets are
// skipped, and a target shared by several keys is listed once.
func (m GalleryMap) Targets() []string {
	seen := map[string]bool{}
	result := []string{}

	for _, key := range m.Keys() {
		target := strings.TrimSpace(m[key])
		if target == "" || seen[target] {
			continue
		}

		seen[target] = true
		result = append(result, target)
	}

	return result
}

// DigOptions tells extraction whether to actively scrape the current page and
// whether discovered links should be followed one level further.
type DigOptions struct {
	Scrape bool `json:"doScrape"`
	Dig    bool `json:"doDig"`
}

func DefaultDigOptions() DigOptions {
	return DigOptions{Scrape: true, Dig: true}
}

// LocDoc is the loaded context of one page.
type LocDoc struct {
	Location *url.URL
	Document *goquery.Document
}

// URI returns string form of page location, or empty string when location is
// missing.
func (d LocDoc) URI() string {
	if d.Location == nil {
		return ""
	}
	return d.Location.String()
}

// MediaOptions selects which kind of media a scrape collects.
type MediaOptions struct {
	Images         bool
	CSSBackgrounds bool
	Videos         bool
	Audios         bool
	Scripts        bool // URLs found inside <script> text
	QueryString    bool // URLs found in page location's query string
}

var (
	AllMedia = MediaOptions{
		Images:         true,
		CSSBackgrounds: true,
		Videos:         true,
		Audios:         true,
		Scripts:        true,
		QueryString:    true,
	}
	ImagesOnly = MediaOptions{
		Images:         true,
		CSSBackgrounds: true,
		Scripts:        true,
		QueryString:    true,
	}
	VideosOnly = MediaOptions{
		Videos:      true,
		Scripts:     true,
		QueryString: true,
	}
)

// ProbeDescriptor describes how link/thumbnail pairs are collected from a page
// before any extraction runs.
type ProbeDescriptor struct {
	LinkSelector  string // selector for link elements, e.g. `a[href]`
	LinkAttr      string // attribute holding link URI
	ThumbSelector string // selector relative to link element
	ThumbAttr     string // attribute holding thumbnail URI
	UseRawValues  bool   // when false, values are resolved against page location
}

// IsZero reports whether no probing is requested.
func (p ProbeDescriptor) IsZero() bool {
	return p.LinkSelector == ""
}

// DefaultProbe is the probe used when looking for links to other galleries.
var DefaultProbe = ProbeDescriptor{
	LinkSelector:  "a[href]",
	LinkAttr:      "href",
	ThumbSelector: "img",
	ThumbAttr:     "src",
}
