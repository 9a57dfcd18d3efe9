package install

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/playwright-community/playwright-go"
	"github.com/urfave/cli/v3"
)

func Cmd() *cli.Command {
	cmd := &cli.Command{
		Name:  "install",
		Usage: "install browser used by --render",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all-browsers",
				Usage: "install every browser playwright supports instead of Chromium only",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			options := &playwright.RunOptions{
				Browsers: []string{"chromium"},
				Verbose:  true,
			}
			if cmd.Bool("all-browsers") {
				options.Browsers = nil
			}

			if err := playwright.Install(options); err != nil {
				return err
			}

			log.Info("playwright driver and browser installed")

			return nil
		},
	}

	return cmd
}
