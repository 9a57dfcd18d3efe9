package harvest

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/SirZenith/gimme/gallery"
)

// default extension appended to files served by dynamic endpoints
const dynamicEndpointExt = ".jpg"

var (
	queryStringRe     = regexp.MustCompile(`\?(.+?)$`)
	dynamicEndpointRe = regexp.MustCompile(`/[^/?]+?\.(php|asp|aspx|jsp|cgi)\?`)
	parenPrefixRe     = regexp.MustCompile(`^\(.*\)`)
)

// NameDestination derives local destination path of a download source. The
// returned path only uses source for naming, source itself should still be
// used unchanged for fetching.
func NameDestination(sourceURI, downloadsDir string) (string, error) {
	if sourceURI == "" || strings.HasPrefix(sourceURI, ".") {
		return "", fmt.Errorf("%w: %q", gallery.ErrBadSource, sourceURI)
	}

	withoutQuery := queryStringRe.ReplaceAllString(sourceURI, "")

	filename := withoutQuery
	if index := strings.LastIndex(withoutQuery, "/"); index >= 0 {
		filename = withoutQuery[index+1:]
	}

	if dynamicEndpointRe.MatchString(sourceURI) {
		filename += dynamicEndpointExt
	}

	filename = parenPrefixRe.ReplaceAllString(filename, "")
	if filename == "" {
		return "", fmt.Errorf("%w: no file name in %q", gallery.ErrBadSource, sourceURI)
	}

	return path.Join(downloadsDir, filename), nil
}
