package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultMinZoomWidth  = 300
	DefaultMinZoomHeight = 300
	DefaultDlChannels    = 5
	DefaultDlBatchSize   = 5

	DefaultKnownBadImgRegex = `/\/(logo\.|loading|header\.jpg|premium_|preview\.png|holder-trailer-home\.jpg|logo-mobile-w\.svg|logo\.svg|logo-desktop-w\.svg|user\.svg|speech\.svg|folder\.svg|layers\.svg|tag\.svg|video\.svg|favorites\.svg|spinner\.svg|preview\.jpg)/i`
)

// Count is an integer that also accepts quoted numbers in JSON, rule files
// written by hand often store numbers as strings.
type Count int

func (c *Count) UnmarshalJSON(data []byte) error {
	text := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if text == "" || text == "null" {
		*c = 0
		return nil
	}

	value, err := strconv.Atoi(text)
	if err != nil {
		return fmt.Errorf("invalid count %s: %s", data, err)
	}
	*c = Count(value)

	return nil
}

// Config holds global harvesting parameters.
type Config struct {
	MinZoomWidth     Count  `json:"minZoomWidth" toml:"minZoomWidth"`
	MinZoomHeight    Count  `json:"minZoomHeight" toml:"minZoomHeight"`
	DlChannels       Count  `json:"dlChannels" toml:"dlChannels"`
	DlBatchSize      Count  `json:"dlBatchSize" toml:"dlBatchSize"`
	KnownBadImgRegex string `json:"knownBadImgRegex" toml:"knownBadImgRegex"`
}

// Message tells how link/thumbnail pairs are collected on matching pages.
// Href and Src are property paths of link and thumbnail element, e.g.
// `href` or `dataset.src`.
type Message struct {
	Match string `json:"match" toml:"match"`
	Link  string `json:"link" toml:"link"`
	Href  string `json:"href" toml:"href"`
	Thumb string `json:"thumb" toml:"thumb"`
	Src   string `json:"src" toml:"src"`
}

// Action is one URI transformation. Noun is either `src` (thumbnail URI) or
// `href` (target URI), Verb currently only supports `replace`.
type Action struct {
	Noun  string `json:"noun" toml:"noun"`
	Verb  string `json:"verb" toml:"verb"`
	Match string `json:"match" toml:"match"`
	New   string `json:"new" toml:"new"`
}

// Processing post-processes gallery map of matching pages and decides which
// engines run on them.
type Processing struct {
	Match   string   `json:"match" toml:"match"`
	Actions []Action `json:"actions" toml:"actions"`
	Dig     bool     `json:"dig" toml:"dig"`
	Scrape  bool     `json:"scrape" toml:"scrape"`

	// Lua script run after actions, relative to rule file directory.
	Script string `json:"script,omitempty" toml:"script,omitempty"`
}

// Blessing locates full-sized image on matching detail pages.
type Blessing struct {
	Match string `json:"match" toml:"match"`
	Zoom  string `json:"zoom" toml:"zoom"`
	Src   string `json:"src" toml:"src"`
}

type Spec struct {
	Config      Config       `json:"config" toml:"config"`
	Messages    []Message    `json:"messages" toml:"messages"`
	Processings []Processing `json:"processings" toml:"processings"`
	Blessings   []Blessing   `json:"blessings" toml:"blessings"`
}

func DefaultConfig() Config {
	return Config{
		MinZoomWidth:     DefaultMinZoomWidth,
		MinZoomHeight:    DefaultMinZoomHeight,
		DlChannels:       DefaultDlChannels,
		DlBatchSize:      DefaultDlBatchSize,
		KnownBadImgRegex: DefaultKnownBadImgRegex,
	}
}

func DefaultSpec() Spec {
	return Spec{
		Config:      DefaultConfig(),
		Messages:    []Message{},
		Processings: []Processing{},
		Blessings:   []Blessing{},
	}
}

// fillDefaults replaces unset config values with default ones.
func (s *Spec) fillDefaults() {
	defaults := DefaultConfig()

	if s.Config.MinZoomWidth <= 0 {
		s.Config.MinZoomWidth = defaults.MinZoomWidth
	}
	if s.Config.MinZoomHeight <= 0 {
		s.Config.MinZoomHeight = defaults.MinZoomHeight
	}
	if s.Config.DlChannels <= 0 {
		s.Config.DlChannels = defaults.DlChannels
	}
	if s.Config.DlBatchSize <= 0 {
		s.Config.DlBatchSize = defaults.DlBatchSize
	}
	if s.Config.KnownBadImgRegex == "" {
		s.Config.KnownBadImgRegex = defaults.KnownBadImgRegex
	}
}

// ReadSpecFile loads rule spec from a JSON or TOML file, format is decided by
// file extension.
func ReadSpecFile(path string) (Spec, error) {
	spec := DefaultSpec()

	data, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("failed to read rule file %s: %s", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &spec)
	default:
		err = json.Unmarshal(data, &spec)
	}

	if err != nil {
		return spec, fmt.Errorf("failed to parse rule file %s: %s", path, err)
	}

	spec.fillDefaults()

	return spec, nil
}
