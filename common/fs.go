package common

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Expand `target` relative to given path if its a relative path, else it will
// be returned unchanged. Empty string will be returned as empty string.
func ResolveRelativePath(target, relativeTo string) string {
	if target == "" {
		return target
	}

	if filepath.IsAbs(target) {
		return target
	}

	target = filepath.Join(relativeTo, target)
	target = filepath.Clean(target)

	return target
}

// Retuns a copy of `name` with all invalid path characters replaced.
func InvalidPathCharReplace(name string) string {
	replacer := strings.NewReplacer(
		"<", "〈",
		">", "〉",
		":", "：",
		"\"", "“",
		"/", "／",
		"\\", "＼",
		"|", "｜",
		"?", "？",
		"*", "＊",
	)

	return replacer.Replace(name)
}

// SaltedDirName returns name of downloads directory for a page, salt keeps
// directories of different runs on the same page apart.
func SaltedDirName(root string, pageURL *url.URL, salt string) string {
	host := "local"
	page := "index"

	if pageURL != nil {
		host = GetStrOr(pageURL.Hostname(), host)

		base := path.Base(strings.TrimRight(pageURL.Path, "/"))
		if base != "." && base != "/" && base != "" {
			page = strings.TrimSuffix(base, path.Ext(base))
		}
	}

	if len(salt) > 8 {
		salt = salt[:8]
	}

	name := InvalidPathCharReplace(fmt.Sprintf("Gimme-%s_%s-%s", host, page, salt))

	return filepath.Join(root, name)
}

// ReplaceFileExt returns `name` with its extension replaced by `ext`, `ext`
// should start with a dot.
func ReplaceFileExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}
