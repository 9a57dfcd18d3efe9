// Package setup wires harvest components from config file and command line
// flags.
package setup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/SirZenith/gimme/common"
	"github.com/SirZenith/gimme/config"
	"github.com/SirZenith/gimme/database"
	"github.com/SirZenith/gimme/download"
	"github.com/SirZenith/gimme/extract"
	"github.com/SirZenith/gimme/harvest"
	"github.com/SirZenith/gimme/network"
	"github.com/SirZenith/gimme/output"
	"github.com/SirZenith/gimme/rules"
	"github.com/SirZenith/gimme/store"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"gorm.io/gorm"
)

const defaultDbName = "gimme.db"

// StateFlags are flags needed to reach persisted state.
func StateFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to config file, JSON or TOML",
		},
		&cli.StringFlag{
			Name:  "state",
			Usage: "where last harvest result is kept: JSON file, SQLite file or postgres DSN",
		},
	}
}

// HarvestFlags are flags shared by commands running a harvest.
func HarvestFlags() []cli.Flag {
	return append(StateFlags(),
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "root directory of downloads",
		},
		&cli.StringFlag{
			Name:  "rules",
			Usage: "path to site rule file, JSON or TOML",
		},
		&cli.StringFlag{
			Name:  "db",
			Usage: "path to download record database",
		},
		&cli.StringFlag{
			Name:  "proxy",
			Usage: "proxy url, e.g. http://127.0.0.1:1080",
		},
		&cli.IntFlag{
			Name:  "job",
			Usage: "concurrent request count per host",
		},
		&cli.IntFlag{
			Name:  "gallery-jobs",
			Usage: "number of gallery pages loaded at the same time by gallery command",
		},
		&cli.IntFlag{
			Name:  "retry",
			Usage: "retry count for each request",
			Value: -1,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "request timeout",
			Value: -1,
		},
		&cli.DurationFlag{
			Name:  "delay",
			Usage: "request delay",
			Value: -1,
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "convert downloaded images into given format",
		},
		&cli.BoolFlag{
			Name:  "zip",
			Usage: "bundle downloads into zip archive",
		},
		&cli.BoolFlag{
			Name:  "render",
			Usage: "load page with headless browser",
		},
		&cli.StringFlag{
			Name:  "snapshot",
			Usage: "read page from saved HTML file instead of fetching it",
		},
		&cli.BoolFlag{
			Name:    "choose",
			Aliases: []string{"C"},
			Usage:   "list found files and choose which to download",
		},
		&cli.StringFlag{
			Name:    "select",
			Aliases: []string{"s"},
			Usage:   "choose files without prompting: all, jpg or ids like 1,3-5",
		},
	)
}

// LoadConfig reads config file given by `--config` and applies command line
// overrides on it.
func LoadConfig(cmd *cli.Command) (config.Config, error) {
	applyLogLevel(cmd)

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return cfg, err
	}

	if cmd.IsSet("state") {
		cfg.State = cmd.String("state")
	}

	if !hasFlag(cmd, "output") {
		return cfg, nil
	}

	cfg.OutputDir = common.GetStrOr(cmd.String("output"), cfg.OutputDir)
	cfg.RulesFile = common.GetStrOr(cmd.String("rules"), cfg.RulesFile)
	cfg.Database = common.GetStrOr(cmd.String("db"), cfg.Database)
	cfg.HttpProxy = common.GetStrOr(cmd.String("proxy"), cfg.HttpProxy)
	cfg.ImageFormat = common.GetStrOr(cmd.String("format"), cfg.ImageFormat)

	if job := int(cmd.Int("job")); job > 0 {
		cfg.JobCount = job
	}
	if jobs := int(cmd.Int("gallery-jobs")); jobs > 0 {
		cfg.GalleryJobs = jobs
	}
	if retry := int(cmd.Int("retry")); retry >= 0 {
		cfg.RetryCount = retry
	}

	cfg.Timeout = config.Duration(common.GetDurationOr(cmd.Duration("timeout"), time.Duration(cfg.Timeout)))
	cfg.Delay = config.Duration(common.GetDurationOr(cmd.Duration("delay"), time.Duration(cfg.Delay)))

	cfg.Zip = cfg.Zip || cmd.Bool("zip")
	cfg.Render = cfg.Render || cmd.Bool("render")

	if cfg.Database == "" {
		cfg.Database = filepath.Join(cfg.OutputDir, defaultDbName)
	}

	return cfg, nil
}

// applyLogLevel sets log level from global `--verbose`/`--quiet` flags.
func applyLogLevel(cmd *cli.Command) {
	switch {
	case cmd.Bool("verbose"):
		log.SetLevel(log.DebugLevel)
	case cmd.Bool("quiet"):
		log.SetLevel(log.WarnLevel)
	}
}

func hasFlag(cmd *cli.Command, name string) bool {
	for _, flag := range cmd.Flags {
		for _, flagName := range flag.Names() {
			if flagName == name {
				return true
			}
		}
	}
	return false
}

// Env holds wired harvest components of one command invocation.
type Env struct {
	Config    config.Config
	Harvester *harvest.Harvester
	Terminal  *output.Terminal
	Store     store.Store

	db *gorm.DB
}

// NewStateEnv makes environment that only has access to persisted state.
func NewStateEnv(ctx context.Context, cmd *cli.Command) (*Env, error) {
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return nil, err
	}

	s, err := store.Open(ctx, cfg.State)
	if err != nil {
		return nil, err
	}

	terminal := output.NewTerminal()

	return &Env{
		Config:   cfg,
		Terminal: terminal,
		Store:    s,
		Harvester: &harvest.Harvester{
			Sink:      terminal,
			Store:     s,
			OutputDir: cfg.OutputDir,
		},
	}, nil
}

// NewEnv wires a harvester working on page at `pageURL`.
func NewEnv(ctx context.Context, cmd *cli.Command, pageURL string) (*Env, error) {
	env, err := NewStateEnv(ctx, cmd)
	if err != nil {
		return nil, err
	}

	if err = env.wire(cmd, pageURL); err != nil {
		env.Close()
		return nil, err
	}

	return env, nil
}

func (e *Env) wire(cmd *cli.Command, pageURL string) error {
	cfg := e.Config

	evaluator, err := rules.LoadEvaluator(cfg.RulesFile)
	if err != nil {
		return err
	}
	ruleCfg := evaluator.Config()

	headers := cfg.HeaderSet()
	collectorOptions := cfg.CollectorOptions()

	fetcher, err := network.NewFetcher(collectorOptions, headers, cfg.RetryCount)
	if err != nil {
		return err
	}

	if e.db, err = database.Open(cfg.Database); err != nil {
		return err
	}

	if err := download.CheckImageFormat(cfg.ImageFormat); err != nil {
		return err
	}

	dlOptions := collectorOptions
	dlOptions.Parallelism = max(collectorOptions.Parallelism, int(ruleCfg.DlChannels))

	downloader := download.NewDownloader(download.Options{
		Collector:    dlOptions,
		Retry:        cfg.RetryCount,
		BatchSize:    int(ruleCfg.DlBatchSize),
		ImageFormat:  cfg.ImageFormat,
		Zip:          cfg.Zip,
		ShowProgress: true,
	}, headers, e.db)

	h := e.Harvester
	h.Pages = pageProvider(cfg, cmd.String("snapshot"), pageURL, fetcher)
	h.Fetcher = fetcher
	h.Scraper = extract.NewScraper(evaluator)
	h.Digger = extract.NewDigger(fetcher, evaluator)
	h.Rules = evaluator
	h.Downloads = downloader
	h.FanoutParallelism = cfg.GalleryJobs

	return nil
}

func pageProvider(cfg config.Config, snapshot, pageURL string, fetcher *network.Fetcher) harvest.PageContextProvider {
	if cfg.Render && snapshot == "" {
		return &network.Renderer{
			URL:       pageURL,
			Timeout:   cfg.CollectorOptions().Timeout,
			UserAgent: cfg.UserAgent,
			Proxy:     cfg.HttpProxy,
		}
	}

	return &network.PageSource{
		URL:          pageURL,
		SnapshotPath: snapshot,
		Fetcher:      fetcher,
	}
}

func (e *Env) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			log.Warnf("failed to close state store: %s", err)
		}
	}

	if e.db != nil {
		if err := database.Close(e.db); err != nil {
			log.Warnf("%s", err)
		}
	}
}

// LogBanner prints summary of a harvest about to start.
func (e *Env) LogBanner(operation, pageURL string) {
	msgs := []string{
		fmt.Sprintf("%-10s: %s", "operation", operation),
		fmt.Sprintf("%-10s: %s", "page", pageURL),
		fmt.Sprintf("%-10s: %s", "output", e.Config.OutputDir),
		fmt.Sprintf("%-10s: %s", "state", e.Config.State),
	}

	if e.Config.RulesFile != "" {
		msgs = append(msgs, fmt.Sprintf("%-10s: %s", "rules", e.Config.RulesFile))
	}

	common.LogBannerMsg(msgs, 5)
}
