package setup

import (
	"context"
	"fmt"
	"strings"

	"github.com/SirZenith/gimme/gallery"
	"github.com/SirZenith/gimme/harvest"
	"github.com/SirZenith/gimme/output"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

// MediaOptions converts value of `--media` flag into scrape media options.
func MediaOptions(name string) (gallery.MediaOptions, error) {
	switch strings.ToLower(name) {
	case "", "all":
		return gallery.AllMedia, nil
	case "images", "image", "img":
		return gallery.ImagesOnly, nil
	case "videos", "video":
		return gallery.VideosOnly, nil
	default:
		return gallery.MediaOptions{}, fmt.Errorf("unknown media kind %q, available kinds are: all, images, videos", name)
	}
}

// WantChoice reports whether command asks for file options instead of
// downloading everything.
func WantChoice(cmd *cli.Command) bool {
	return cmd.Bool("choose") || cmd.String("select") != ""
}

// Choose asks for file options to download, either from `--select` flag or
// with interactive picker, and dispatches them.
func Choose(ctx context.Context, cmd *cli.Command, outcome *harvest.Outcome) error {
	if outcome == nil || outcome.Registry == nil {
		return nil
	}

	if outcome.Registry.Count() == 0 {
		return nil
	}

	var ids []string
	var err error
	if expr := cmd.String("select"); expr != "" {
		ids, err = output.ParseSelection(expr, outcome.Registry)
	} else {
		ids, err = output.Pick(outcome.Registry)
	}
	if err != nil {
		return err
	}

	if len(ids) == 0 {
		log.Info("nothing selected")
		return nil
	}

	failed := 0
	for _, id := range ids {
		if err := outcome.Registry.Dispatch(ctx, id); err != nil {
			log.Warnf("#%s: %s", id, err)
			failed++
		}
	}

	log.Infof("%d of %d selected file(s) downloaded to %s", len(ids)-failed, len(ids), outcome.DownloadsDir)

	if failed > 0 {
		return fmt.Errorf("%d download(s) failed", failed)
	}

	return nil
}

// LogFanout prints summary of sub-pages visited by a gallery-of-galleries run.
func LogFanout(report harvest.FanoutReport) {
	log.Infof("gallery pages: %d attempted, %d loaded, %d dug", report.Attempted, report.Loaded, report.Dug)

	for _, failure := range report.Failures {
		log.Warnf("%s failed on %s: %s", failure.Stage, failure.URI, failure.Err)
	}
}
