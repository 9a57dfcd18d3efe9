package network

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"sync"
)

// HeaderFilePattern maps a host name glob to header file used by matching
// hosts.
type HeaderFilePattern struct {
	Pattern string `json:"pattern" toml:"pattern"`
	Path    string `json:"path" toml:"path"`
}

type headerValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ReadHeaderFile reads header list JSON in form of
// `Array<{ name: string, value: string }>`.
func ReadHeaderFile(filePath string) (http.Header, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read header file %s: %s", filePath, err)
	}

	list := []headerValue{}
	if err = json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse header file %s: %s", filePath, err)
	}

	header := http.Header{}
	for _, entry := range list {
		header.Add(entry.Name, entry.Value)
	}

	return header, nil
}

// HeaderSet picks request headers for URIs by host name. Header files are
// read lazily and cached.
type HeaderSet struct {
	patterns []HeaderFilePattern

	lock  sync.Mutex
	cache map[string]http.Header
}

func NewHeaderSet(patterns []HeaderFilePattern) *HeaderSet {
	return &HeaderSet{
		patterns: patterns,
		cache:    map[string]http.Header{},
	}
}

// FileFor returns header file path for given URI, the last matching pattern
// wins. Empty string is returned when nothing matches.
func (s *HeaderSet) FileFor(uri string) string {
	target := ""
	if s == nil {
		return target
	}

	u, err := url.Parse(uri)
	if err != nil {
		return target
	}

	hostname := u.Hostname()
	for _, entry := range s.patterns {
		ok, err := path.Match(entry.Pattern, hostname)
		if err == nil && ok {
			target = entry.Path
		}
	}

	return target
}

// HeadersFor returns copy of request headers used for given URI.
func (s *HeaderSet) HeadersFor(uri string) (http.Header, error) {
	filePath := s.FileFor(uri)
	if filePath == "" {
		return http.Header{}, nil
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	header, ok := s.cache[filePath]
	if !ok {
		var err error
		if header, err = ReadHeaderFile(filePath); err != nil {
			return http.Header{}, err
		}
		s.cache[filePath] = header
	}

	return header.Clone(), nil
}
