package state

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/SirZenith/gimme/cmd/internal/setup"
	"github.com/SirZenith/gimme/database"
	"github.com/SirZenith/gimme/database/data_model"
	"github.com/SirZenith/gimme/gallery"
	"github.com/urfave/cli/v3"
)

func Cmd() *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "inspect result of last harvest",
		Commands: []*cli.Command{
			subCmdShow(),
			subCmdClear(),
			subCmdExport(),
		},
	}
}

func subCmdShow() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "print thumbnail and target of every entry kept from last harvest",
		Flags: append(setup.StateFlags(),
			&cli.StringFlag{
				Name:    "locale",
				Aliases: []string{"l"},
				Usage:   "IETF BCP 47 language tag to be used as sorting language",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			m, err := loadState(ctx, cmd)
			if err != nil {
				return err
			}

			keys := m.Keys()
			sortLocalized(keys, cmd.String("locale"))

			for _, thumb := range keys {
				fmt.Printf("%s\n    -> %s\n", thumb, m[thumb])
			}
			fmt.Printf("%d entries\n", len(m))

			return nil
		},
	}
}

func subCmdClear() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "remove kept harvest result",
		Flags: setup.StateFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			env, err := setup.NewStateEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			return env.Store.Clear(ctx)
		},
	}
}

func subCmdExport() *cli.Command {
	var csvFilePath string

	return &cli.Command{
		Name:  "export",
		Usage: "export kept harvest result as CSV, or download records with --records",
		Flags: append(setup.StateFlags(),
			&cli.StringFlag{
				Name:  "records",
				Usage: "path to download record database to export instead of harvest result",
			},
		),
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:        "csv-file",
				UsageText:   "<csv>",
				Destination: &csvFilePath,
				Max:         1,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			writer := io.Writer(os.Stdout)
			if csvFilePath != "" {
				file, err := os.Create(csvFilePath)
				if err != nil {
					return fmt.Errorf("failed to create CSV file %s: %s", csvFilePath, err)
				}
				defer file.Close()
				writer = file
			}

			if dbPath := cmd.String("records"); dbPath != "" {
				db, err := database.Open(dbPath)
				if err != nil {
					return err
				}
				defer database.Close(db)

				return database.ExportTable(db, &data_model.DownloadRecord{}, writer)
			}

			m, err := loadState(ctx, cmd)
			if err != nil {
				return err
			}

			return writeMapCSV(m, writer)
		},
	}
}

func loadState(ctx context.Context, cmd *cli.Command) (gallery.GalleryMap, error) {
	env, err := setup.NewStateEnv(ctx, cmd)
	if err != nil {
		return nil, err
	}
	defer env.Close()

	return env.Harvester.Restore(ctx)
}

func writeMapCSV(m gallery.GalleryMap, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)

	if err := csvWriter.Write([]string{"thumb_uri", "target_uri"}); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for _, thumb := range m.Keys() {
		if err := csvWriter.Write([]string{thumb, m[thumb]}); err != nil {
			return fmt.Errorf("failed to write data row to csv %w", err)
		}
	}

	csvWriter.Flush()

	return csvWriter.Error()
}
