package scrape

import (
	"context"

	"github.com/SirZenith/gimme/cmd/internal/setup"
	"github.com/SirZenith/gimme/harvest"
	"github.com/urfave/cli/v3"
)

func Cmd() *cli.Command {
	var pageURL string

	cmd := &cli.Command{
		Name:  "scrape",
		Usage: "collect media referenced directly by a page and download them",
		Flags: append(setup.HarvestFlags(),
			&cli.StringFlag{
				Name:    "media",
				Aliases: []string{"m"},
				Usage:   "kind of media to collect: all, images or videos",
				Value:   "all",
			},
		),
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:        "url",
				UsageText:   "<url>",
				Destination: &pageURL,
				Min:         1,
				Max:         1,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			media, err := setup.MediaOptions(cmd.String("media"))
			if err != nil {
				return err
			}

			env, err := setup.NewEnv(ctx, cmd, pageURL)
			if err != nil {
				return err
			}
			defer env.Close()

			env.LogBanner("scrape", pageURL)

			var outcome *harvest.Outcome
			if !setup.WantChoice(cmd) {
				_, err = env.Harvester.Scrape(ctx, media)
				return err
			}

			if outcome, err = env.Harvester.ScrapeFileOptions(ctx, media); err != nil {
				return err
			}

			return setup.Choose(ctx, cmd, outcome)
		},
	}

	return cmd
}
