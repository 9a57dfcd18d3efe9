// Package output presents harvest progress and file options on terminal.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/SirZenith/gimme/harvest"
	"github.com/charmbracelet/log"
)

// Terminal is a presentation sink printing to terminal. File options shown
// are kept so that they can be picked from later.
type Terminal struct {
	lock   sync.Mutex
	writer io.Writer

	choices     []*harvest.FileOption
	downloading map[string]bool
	badge       int
}

func NewTerminal() *Terminal {
	return &Terminal{
		writer:      os.Stdout,
		downloading: map[string]bool{},
	}
}

// NewTerminalWriter makes terminal sink writing file option list to `w`.
func NewTerminalWriter(w io.Writer) *Terminal {
	t := NewTerminal()
	t.writer = w
	return t
}

func (t *Terminal) SetProgress(text string) {
	log.Info(text)
}

func (t *Terminal) SetBadgeCount(n int) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.badge = n
	log.Debugf("badge: %d", n)
}

func (t *Terminal) ShowChoices(options []*harvest.FileOption) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.choices = append(t.choices, options...)

	fmt.Fprintln(t.writer, titleStyle.Render("Files found"))
	for _, opt := range options {
		fmt.Fprintln(t.writer, renderOption(opt, false))
	}
}

func (t *Terminal) ShowDownloading(id string) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.downloading[id] = true
	log.Debugf("downloading #%s", id)
}

func (t *Terminal) ClearChoices() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.choices = nil
	t.downloading = map[string]bool{}
}

func (t *Terminal) SetRunning(kind harvest.RunKind, running bool) {
	if running {
		log.Debugf("%s started", kind)
	} else {
		log.Debugf("%s finished", kind)
	}
}

// Choices returns file options shown since last clear.
func (t *Terminal) Choices() []*harvest.FileOption {
	t.lock.Lock()
	defer t.lock.Unlock()

	result := make([]*harvest.FileOption, len(t.choices))
	copy(result, t.choices)

	return result
}

// Badge returns the latest badge count.
func (t *Terminal) Badge() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.badge
}

// IsDownloading reports whether option with given id has been dispatched.
func (t *Terminal) IsDownloading(id string) bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.downloading[id]
}

func renderOption(opt *harvest.FileOption, checked bool) string {
	mark := "[ ]"
	if checked {
		mark = selectedStyle.Render("[x]")
	}

	var b strings.Builder
	b.WriteString(mark)
	b.WriteString(" ")
	b.WriteString(idStyle.Render(fmt.Sprintf("%3s", opt.ID)))
	b.WriteString("  ")
	b.WriteString(pathStyle.Render(opt.DestPath))
	b.WriteString("\n        ")
	b.WriteString(uriStyle.Render(opt.SourceURI))

	return b.String()
}
