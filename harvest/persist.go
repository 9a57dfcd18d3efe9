package harvest

import (
	"context"

	"github.com/SirZenith/gimme/common"
	"github.com/SirZenith/gimme/gallery"
	"github.com/charmbracelet/log"
)

// persist saves gallery map to state store. Failure is logged only, it never
// changes outcome of a run.
func (h *Harvester) persist(ctx context.Context, m gallery.GalleryMap) {
	if h.Store == nil {
		return
	}

	if m == nil {
		m = gallery.GalleryMap{}
	}

	if err := h.Store.Save(ctx, m.Clone()); err != nil {
		log.Errorf("failed to persist gallery map: %s", err)
		return
	}

	log.Debugf("persisted %d gallery map entries", len(m))
}

// Restore loads the last persisted gallery map.
func (h *Harvester) Restore(ctx context.Context) (gallery.GalleryMap, error) {
	if h.Store == nil {
		return gallery.GalleryMap{}, nil
	}

	m, err := h.Store.Load(ctx)
	if err != nil {
		return nil, err
	}

	if m == nil {
		m = gallery.GalleryMap{}
	}

	return m, nil
}

// Resume presents the last persisted gallery map as file options again. It
// takes part in single flight just like other entry operations, but it
// persists nothing.
func (h *Harvester) Resume(ctx context.Context) (*Outcome, error) {
	run, runCtx, err := h.begin(ctx, Operation{Mode: ModeDig, PresentChoice: true})
	if err != nil {
		return nil, err
	}
	defer h.release(run)

	h.clearState(run)

	m, err := h.Restore(runCtx)
	if err != nil {
		log.Errorf("failed to load persisted gallery map: %s", err)
		h.progress(msgInternalError)
		return nil, err
	}

	run.downloadsDir = common.SaltedDirName(h.OutputDir, nil, run.id)

	h.setStage(run, StagePresenting)
	options := h.present(run, m)

	return h.outcome(run, options), nil
}
