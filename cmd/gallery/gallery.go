package gallery

import (
	"context"

	"github.com/SirZenith/gimme/cmd/internal/setup"
	"github.com/urfave/cli/v3"
)

func Cmd() *cli.Command {
	var pageURL string

	cmd := &cli.Command{
		Name:    "gallery",
		Aliases: []string{"gg"},
		Usage:   "dig every gallery linked from a page of galleries, then choose files to download",
		Flags:   setup.HarvestFlags(),
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
			env, err := setup.NewEnv(ctx, cmd, pageURL)
			if err != nil {
				return err
			}
			defer env.Close()

			env.LogBanner("gallery of galleries", pageURL)

			outcome, err := env.Harvester.DigGalleryGallery(ctx)
			if err != nil {
				return err
			}

			setup.LogFanout(outcome.Fanout)

			return setup.Choose(ctx, cmd, outcome)
		},
	}

	return cmd
}
