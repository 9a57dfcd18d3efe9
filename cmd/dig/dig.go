package dig

import (
	"context"

	"github.com/SirZenith/gimme/cmd/internal/setup"
	"github.com/urfave/cli/v3"
)

func Cmd() *cli.Command {
	var pageURL string

	cmd := &cli.Command{
		Name:  "dig",
		Usage: "follow thumbnail links on a gallery page and download full-sized media",
		Flags: setup.HarvestFlags(),
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

			env.LogBanner("dig", pageURL)

			if !setup.WantChoice(cmd) {
				_, err = env.Harvester.DigGallery(ctx)
				return err
			}

			outcome, err := env.Harvester.DigFileOptions(ctx)
			if err != nil {
				return err
			}

			return setup.Choose(ctx, cmd, outcome)
		},
	}

	return cmd
}
