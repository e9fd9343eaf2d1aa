package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/grovetools/basin/cli"
	"github.com/grovetools/basin/config"
	"github.com/grovetools/basin/logging"
	"github.com/grovetools/basin/pkg/basin"
	"github.com/grovetools/basin/pkg/channel"
	"github.com/grovetools/basin/pkg/livereload"
	"github.com/grovetools/basin/pkg/pipeline"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewRunCmd creates the `run` command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scan the project and run the configured pipelines",
		Long: `Scans the project root, dispatches every file to the channels it matches
and runs the pipelines declared in basin.yml. Without --watch basin exits once
the initial scan has been processed.

Examples:
  # Build once
  basin run

  # Keep rebuilding on change and push reloads to the browser
  basin run --watch --serve :35729
`,
		RunE: runRunE,
	}

	cmd.Flags().BoolP("watch", "w", false, "Keep watching after the initial scan")
	cmd.Flags().Bool("emit-file", false, "Attach file contents to change events")
	cmd.Flags().String("root", "", "Directory to watch (default: from config)")
	cmd.Flags().String("serve", "", "Serve live reload on this address")
	cmd.Flags().Duration("debounce", 0, "Coalesce rapid writes to one path within this window")
	cmd.Flags().Bool("no-clean", false, "Skip removing the config's clean patterns")

	return cmd
}

func runRunE(cmd *cobra.Command, args []string) error {
	cli.GetLogger(cmd)
	logger := logging.NewLogger("basin")
	printer := logging.NewPrettyLogger()

	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}

	opts := engineOptions(cfg, logger)
	opts.ErrorHandler = func(err error) {
		logger.WithError(err).Error("Dispatch failed")
		if cfg.Watch {
			printer.ErrorPretty("Pipeline failed", err)
		}
	}

	b, err := basin.New(opts)
	if err != nil {
		return err
	}

	noClean, _ := cmd.Flags().GetBool("no-clean")
	if !noClean {
		for _, pattern := range cfg.Clean {
			logger.WithField("pattern", pattern).Debug("Cleaning")
			if err := b.Remove(pattern); err != nil {
				return err
			}
		}
	}

	if _, err := pipeline.Attach(b, cfg.Pipelines, printer); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	if cfg.Serve != nil && cfg.Serve.Addr != "" {
		hub := livereload.NewHub(logger)
		hub.Attach(b)
		g.Go(func() error {
			return hub.ListenAndServe(runCtx, cfg.Serve.Addr, cfg.Serve.Path)
		})
		printer.Path("Live reload", fmt.Sprintf("ws://%s%s", cfg.Serve.Addr, cfg.Serve.Path))
	}

	printer.Path("Root", b.Root())
	if cfg.Watch {
		printer.InfoPretty("Watching for changes, press Ctrl+C to stop")
	}

	start := time.Now()
	g.Go(func() error {
		defer cancel()
		return b.Run(runCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	printer.Success(fmt.Sprintf("Done in %s", time.Since(start).Round(time.Millisecond)))
	return nil
}

// applyRunFlags lets explicitly set flags override the config file.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("watch") {
		cfg.Watch, _ = flags.GetBool("watch")
	}
	if flags.Changed("emit-file") {
		cfg.EmitFile, _ = flags.GetBool("emit-file")
	}
	if flags.Changed("root") {
		cfg.Root, _ = flags.GetString("root")
	}
	if flags.Changed("debounce") {
		debounce, _ := flags.GetDuration("debounce")
		cfg.DebounceMs = int(debounce / time.Millisecond)
	}
	if flags.Changed("serve") {
		addr, _ := flags.GetString("serve")
		if cfg.Serve == nil {
			cfg.Serve = &config.ServeConfig{}
		}
		cfg.Serve.Addr = addr
		cfg.SetDefaults()
	}

	return cfg.Validate()
}

// engineOptions maps a loaded config onto engine options. Copy outputs
// inside the root are ignored so pipelines never consume their own output.
func engineOptions(cfg *config.Config, logger *logrus.Entry) basin.Options {
	specs := make([]channel.Spec, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		specs = append(specs, channel.Spec{Name: ch.Name, Patterns: ch.Patterns})
	}

	root := cfg.Root
	if root == "" {
		root = cfg.Dir
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	ignore := append([]string(nil), cfg.Ignore...)
	ignore = append(ignore, pipeline.IgnorePatterns(cfg.Pipelines, root)...)

	return basin.Options{
		Root:     root,
		Watch:    cfg.Watch,
		EmitFile: cfg.EmitFile,
		Ignore:   ignore,
		Channels: specs,
		Debounce: time.Duration(cfg.DebounceMs) * time.Millisecond,
		Logger:   logger,
	}
}
