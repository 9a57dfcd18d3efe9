package download

import (
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

func newProgressBar(visible bool) *progressbar.ProgressBar {
	return progressbar.NewOptions64(
		0,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetVisibility(visible),
		progressbar.OptionSetWidth(5),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// changeProgressMax add delta to max number of task to progress bar.
func changeProgressMax(bar *progressbar.ProgressBar, delta int64) {
	state := bar.State()

	newMax := state.Max + delta
	bar.ChangeMax64(newMax)

	if state.CurrentNum == state.Max {
		bar.Reset()

		if newMax > state.CurrentNum {
			bar.Set64(state.CurrentNum)
		} else {
			bar.Set64(newMax)
		}
	}
}

// batchProgress counts finished and failed entries of one batch download.
type batchProgress struct {
	lock sync.Mutex
	bar  *progressbar.ProgressBar

	finished int
	failed   []string
}

func (p *batchProgress) add() {
	p.lock.Lock()
	defer p.lock.Unlock()

	changeProgressMax(p.bar, 1)
}

func (p *batchProgress) done(uri string, err error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.finished++
	p.bar.Add(1)

	if err != nil {
		p.failed = append(p.failed, uri)
		p.bar.Describe(err.Error())
	} else {
		p.bar.Describe("")
	}
}
