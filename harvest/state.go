package harvest

import (
	"github.com/SirZenith/gimme/gallery"
)

// Stage is the position of a harvest run in its state machine.
type Stage int

const (
	StageIdle Stage = iota
	StageAcquiring
	StageDeciding
	StageHarvesting
	StageDownloading
	StagePresenting
	StageFailed
	StageFinalizing
)

var stageNames = map[Stage]string{
	StageIdle:        "idle",
	StageAcquiring:   "acquiring",
	StageDeciding:    "deciding",
	StageHarvesting:  "harvesting",
	StageDownloading: "downloading",
	StagePresenting:  "presenting",
	StageFailed:      "failed",
	StageFinalizing:  "finalizing",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// Mode selects the harvesting engine of an entry operation.
type Mode int

const (
	ModeScrape Mode = iota
	ModeDig
	ModeGalleryOfGalleries
)

func (m Mode) String() string {
	switch m {
	case ModeScrape:
		return "scrape"
	case ModeDig:
		return "dig"
	case ModeGalleryOfGalleries:
		return "gallery-of-galleries"
	default:
		return "unknown"
	}
}

// Operation is one entry operation, dispatched once at the start of a run.
type Operation struct {
	Mode          Mode
	PresentChoice bool // present file options instead of downloading directly
	Media         gallery.MediaOptions
}

func (op Operation) runKind() RunKind {
	if op.Mode == ModeScrape {
		return RunScraping
	}
	return RunDigging
}

// useSiteProbe tells whether page probe should follow site message rules.
func (op Operation) useSiteProbe() bool {
	switch op.Mode {
	case ModeDig:
		return true
	case ModeScrape:
		return op.PresentChoice
	default:
		return false
	}
}

// runState is the state owned by exactly one active entry operation.
type runState struct {
	id string
	op Operation

	stage Stage

	locDoc       gallery.LocDoc
	probeMap     gallery.GalleryMap
	galleryMap   gallery.GalleryMap
	digOptions   gallery.DigOptions
	downloadsDir string

	registry          *Registry
	alreadyDownloaded map[string]bool
	fanout            FanoutReport
}

func newRunState(id string, op Operation) *runState {
	return &runState{
		id:                id,
		op:                op,
		stage:             StageIdle,
		probeMap:          gallery.GalleryMap{},
		galleryMap:        gallery.GalleryMap{},
		digOptions:        gallery.DefaultDigOptions(),
		alreadyDownloaded: map[string]bool{},
	}
}

// Outcome is what an entry operation hands back to its caller.
type Outcome struct {
	RunID        string
	Map          gallery.GalleryMap
	DownloadsDir string
	Options      []*FileOption // file options when choice is presented
	Downloads    []DownloadEntry
	Registry     *Registry
	Fanout       FanoutReport
}
