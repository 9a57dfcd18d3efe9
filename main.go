package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/SirZenith/gimme/cmd/dig"
	"github.com/SirZenith/gimme/cmd/gallery"
	"github.com/SirZenith/gimme/cmd/install"
	"github.com/SirZenith/gimme/cmd/resume"
	"github.com/SirZenith/gimme/cmd/scrape"
	"github.com/SirZenith/gimme/cmd/state"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:    "gimme",
		Usage:   "collect images and videos from web pages and galleries",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "print debug messages",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "only print warnings and errors",
			},
		},
		Commands: []*cli.Command{
			scrape.Cmd(),
			dig.Cmd(),
			gallery.Cmd(),
			resume.Cmd(),
			state.Cmd(),
			install.Cmd(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := cmd.Run(ctx, os.Args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
