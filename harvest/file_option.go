package harvest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/SirZenith/gimme/gallery"
	"github.com/charmbracelet/log"
)

// SelectFunc is called when a file option gets selected.
type SelectFunc func(ctx context.Context, sourceURI, destPath string) error

// FileOption is one selectable download candidate.
type FileOption struct {
	ID        string
	SourceURI string
	ThumbURI  string
	DestPath  string

	onSelect SelectFunc
	lock     sync.Mutex
	selected bool
}

// Selected reports whether this option has already been selected.
func (opt *FileOption) Selected() bool {
	opt.lock.Lock()
	defer opt.lock.Unlock()

	return opt.selected
}

// Select runs selection callback of this option. An option can only be
// selected once, later calls return error without calling the callback again.
func (opt *FileOption) Select(ctx context.Context) error {
	opt.lock.Lock()
	if opt.selected {
		opt.lock.Unlock()
		return fmt.Errorf("file option %s already selected", opt.ID)
	}
	opt.selected = true
	opt.lock.Unlock()

	if opt.onSelect == nil {
		return nil
	}

	return opt.onSelect(ctx, opt.SourceURI, opt.DestPath)
}

// Registry builds and tracks file options of one harvest run.
type Registry struct {
	lock         sync.Mutex
	downloadsDir string
	onSelect     SelectFunc
	sink         PresentationSink

	options []*FileOption
	byID    map[string]*FileOption
}

func NewRegistry(downloadsDir string, sink PresentationSink, onSelect SelectFunc) *Registry {
	return &Registry{
		downloadsDir: downloadsDir,
		onSelect:     onSelect,
		sink:         sink,
		byID:         map[string]*FileOption{},
	}
}

// Present creates a file option for every valid entry in given map. Entries
// whose source can not be named are dropped and only logged.
func (r *Registry) Present(m gallery.GalleryMap) []*FileOption {
	result := []*FileOption{}
	if len(m) == 0 {
		return result
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	dropped := 0
	for _, thumbURI := range m.Keys() {
		sourceURI := m[thumbURI]

		destPath, err := NameDestination(sourceURI, r.downloadsDir)
		if err != nil {
			log.Debugf("skip file option for %s: %s", thumbURI, err)
			dropped++
			continue
		}

		opt := &FileOption{
			ID:        strconv.Itoa(len(r.options) + 1),
			SourceURI: sourceURI,
			ThumbURI:  thumbURI,
			DestPath:  destPath,
			onSelect:  r.onSelect,
		}

		r.options = append(r.options, opt)
		r.byID[opt.ID] = opt
		result = append(result, opt)
	}

	if dropped > 0 {
		log.Warnf("%d candidate(s) dropped due to bad source URI", dropped)
	}

	if r.sink != nil {
		r.sink.SetBadgeCount(len(r.options))
	}

	return result
}

// Count returns total number of options created so far.
func (r *Registry) Count() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return len(r.options)
}

// Options returns all options created so far in id order.
func (r *Registry) Options() []*FileOption {
	r.lock.Lock()
	defer r.lock.Unlock()

	result := make([]*FileOption, len(r.options))
	copy(result, r.options)

	return result
}

// Get looks up option by its id.
func (r *Registry) Get(id string) (*FileOption, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	opt, ok := r.byID[id]
	return opt, ok
}

// Dispatch selects option with given id.
func (r *Registry) Dispatch(ctx context.Context, id string) error {
	opt, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("no file option with id %q", id)
	}

	if err := opt.Select(ctx); err != nil {
		return err
	}

	if r.sink != nil {
		r.sink.ShowDownloading(id)
	}

	return nil
}

// JPGExts are extensions matched by "all jpg" selection.
var JPGExts = []string{".jpg", ".jpeg"}

// MatchIDs returns ids of options whose destination path ends with one of
// given extensions. Matching is case insensitive, extensions include leading
// dot.
func (r *Registry) MatchIDs(exts ...string) []string {
	result := []string{}
	for _, opt := range r.Options() {
		lower := strings.ToLower(opt.DestPath)
		for _, ext := range exts {
			if strings.HasSuffix(lower, strings.ToLower(ext)) {
				result = append(result, opt.ID)
				break
			}
		}
	}

	return result
}
