package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pteich/configstruct"
	"go.uber.org/zap"

	"github.com/pteich/elastic-sample-data/connect"
	"github.com/pteich/elastic-sample-data/export"
	"github.com/pteich/elastic-sample-data/flags"
	"github.com/pteich/elastic-sample-data/harness"
	"github.com/pteich/elastic-sample-data/logger"
	"github.com/pteich/elastic-sample-data/seed"
)

var Version string

var commands = map[string]bool{"seed": true, "verify": true, "export": true}

// boolFlags take no separate value token.
var boolFlags = map[string]bool{"verifySSL": true, "trace": true, "refresh": true, "keep": true, "h": true, "help": true}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args); err != nil {
		stop()
		os.Exit(1)
	}
}

// commandName returns the first positional argument after the program name,
// skipping flags and their values, or "" if there is none.
func commandName(args []string) string {
	for i := 1; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		}
		if !strings.HasPrefix(arg, "-") {
			return arg
		}
		name := strings.TrimLeft(arg, "-")
		if strings.Contains(name, "=") || boolFlags[name] {
			continue
		}
		// skip the flag value
		i++
	}
	return ""
}

func run(ctx context.Context, args []string) error {
	name := commandName(args)
	switch {
	case name == "":
		// seeding is the default action
		args = append(append([]string{}, args...), "seed")
	case !commands[name]:
		err := fmt.Errorf("unknown command %q, expected one of seed, verify, export", name)
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	conf := flags.Defaults()
	seedConf := flags.SeedFlags{}
	verifyConf := flags.VerifyFlags{}
	exportConf := flags.ExportDefaults()

	var log *zap.Logger
	initLogger := func() error {
		if log != nil {
			return nil
		}
		l, err := logger.New(conf.LogEnv, conf.LogLevel)
		if err != nil {
			return err
		}
		log = l.With(zap.String("version", Version))
		return nil
	}

	seedCmd := configstruct.NewCommand("seed", "Create the index if needed and write the sample documents", &seedConf,
		func(c *configstruct.Command, cfg interface{}) error {
			if err := initLogger(); err != nil {
				return err
			}
			return runSeed(ctx, &conf, &seedConf, log)
		})

	verifyCmd := configstruct.NewCommand("verify", "Run the store behavior checks against a scratch index", &verifyConf,
		func(c *configstruct.Command, cfg interface{}) error {
			if err := initLogger(); err != nil {
				return err
			}
			return runVerify(ctx, &conf, &verifyConf, log)
		})

	exportCmd := configstruct.NewCommand("export", "Export the documents of the index as CSV, JSON or raw hits", &exportConf,
		func(c *configstruct.Command, cfg interface{}) error {
			if err := initLogger(); err != nil {
				return err
			}
			return runExport(ctx, &conf, &exportConf, log)
		})

	cmd := configstruct.NewCommand("", "CLI tool to seed Elasticsearch with sample data and verify the store behaves as expected.", &conf,
		func(c *configstruct.Command, cfg interface{}) error {
			return initLogger()
		}, seedCmd, verifyCmd, exportCmd)

	err := cmd.ParseAndRun(args)
	if err != nil {
		if log == nil {
			fmt.Fprintln(os.Stderr, err)
			return err
		}
		log.Error("command failed", zap.Error(err))
	}
	if log != nil {
		_ = log.Sync()
	}
	return err
}

func runSeed(ctx context.Context, conf *flags.Flags, seedConf *flags.SeedFlags, log *zap.Logger) error {
	store, err := connect.New(conf, log)
	if err != nil {
		return fmt.Errorf("connect to elasticsearch: %w", err)
	}
	defer store.Stop()

	s := seed.New(store, conf.Index, log,
		seed.WithRefresh(seedConf.Refresh),
		seed.WithProgress(os.Stderr),
	)
	if err := s.Run(ctx, seed.SampleDocuments); err != nil {
		return err
	}

	log.Info("sample data seeded, select the index in Kibana Discover to inspect it",
		zap.String("index", conf.Index),
		zap.Int("documents", len(seed.SampleDocuments)),
	)
	return nil
}

func runVerify(ctx context.Context, conf *flags.Flags, verifyConf *flags.VerifyFlags, log *zap.Logger) error {
	var names []string
	if verifyConf.Cases != "" {
		names = strings.Split(verifyConf.Cases, ",")
	}
	cases, err := harness.Find(names...)
	if err != nil {
		return err
	}

	store, err := connect.New(conf, log)
	if err != nil {
		return fmt.Errorf("connect to elasticsearch: %w", err)
	}
	defer store.Stop()

	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}

	h := harness.New(store, conf.Index, log)
	results := h.Run(ctx, cases)

	if !verifyConf.Keep {
		if err := h.Cleanup(context.WithoutCancel(ctx)); err != nil {
			log.Warn("cleanup failed", zap.String("index", conf.Index), zap.Error(err))
		}
	}

	passed := 0
	for _, r := range results {
		if r.Passed() {
			passed++
		}
	}
	log.Info("verification finished",
		zap.Int("passed", passed),
		zap.Int("failed", len(results)-passed),
	)

	return harness.Failed(results)
}

func runExport(ctx context.Context, conf *flags.Flags, exportConf *flags.ExportFlags, log *zap.Logger) error {
	store, err := connect.New(conf, log)
	if err != nil {
		return fmt.Errorf("connect to elasticsearch: %w", err)
	}
	defer store.Stop()

	outfile := os.Stdout
	if exportConf.Outfile != "-" {
		outfile, err = os.Create(exportConf.Outfile)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer outfile.Close()
	}

	written, err := export.Run(ctx, store, conf.Index, exportConf, outfile, os.Stderr, log)
	if err != nil {
		return err
	}

	log.Info("export finished", zap.String("index", conf.Index), zap.Int64("documents", written))
	return nil
}
