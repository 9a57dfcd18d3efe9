// Package extract implements scrape and dig engines working on parsed pages.
package extract

import (
	"net/url"
	"path"
	"strings"
)

var (
	imageExts = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".avif", ".svg", ".tif", ".tiff"}
	videoExts = []string{".mp4", ".webm", ".mov", ".m4v", ".mkv", ".avi", ".flv", ".m3u8"}
	audioExts = []string{".mp3", ".ogg", ".wav", ".m4a", ".flac", ".aac", ".opus"}
)

// BadFilter tells URIs that should never be harvested.
type BadFilter interface {
	KnownBad(uri string) bool
}

// uriExt returns lower case extension of URI path, query and fragment are
// ignored.
func uriExt(uri string) string {
	if u, err := url.Parse(uri); err == nil {
		return strings.ToLower(path.Ext(u.Path))
	}

	if index := strings.IndexAny(uri, "?#"); index >= 0 {
		uri = uri[:index]
	}

	return strings.ToLower(path.Ext(uri))
}

func hasExt(uri string, exts []string) bool {
	ext := uriExt(uri)
	if ext == "" {
		return false
	}

	for _, target := range exts {
		if ext == target {
			return true
		}
	}

	return false
}

func IsImageURI(uri string) bool {
	return hasExt(uri, imageExts)
}

// IsMediaURI reports whether URI points to an image, video or audio file.
func IsMediaURI(uri string) bool {
	return hasExt(uri, imageExts) || hasExt(uri, videoExts) || hasExt(uri, audioExts)
}

// resolveURI converts `ref` into absolute URI relative to `base`. Empty
// string is returned for values that can not be downloaded.
func resolveURI(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return ""
	}

	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "mailto:") {
		return ""
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}

	if base == nil {
		return refURL.String()
	}

	return base.ResolveReference(refURL).String()
}

// srcsetURIs returns every candidate URI listed in a srcset attribute.
func srcsetURIs(srcset string) []string {
	result := []string{}
	for _, candidate := range strings.Split(srcset, ",") {
		fields := strings.Fields(candidate)
		if len(fields) > 0 {
			result = append(result, fields[0])
		}
	}
	return result
}
