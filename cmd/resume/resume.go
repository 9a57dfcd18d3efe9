package resume

import (
	"context"

	"github.com/SirZenith/gimme/cmd/internal/setup"
	"github.com/urfave/cli/v3"
)

func Cmd() *cli.Command {
	cmd := &cli.Command{
		Name:  "resume",
		Usage: "present result of last harvest again and choose files to download",
		Flags: setup.HarvestFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			env, err := setup.NewEnv(ctx, cmd, "")
			if err != nil {
				return err
			}
			defer env.Close()

			outcome, err := env.Harvester.Resume(ctx)
			if err != nil {
				return err
			}

			return setup.Choose(ctx, cmd, outcome)
		},
	}

	return cmd
}
