package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ilixi/ilixi-sub001/internal/domain/catalog"
	"github.com/ilixi/ilixi-sub001/internal/infrastructure/config"
	"github.com/ilixi/ilixi-sub001/internal/infrastructure/logging"
	"github.com/ilixi/ilixi-sub001/internal/infrastructure/server"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// flags override the environment when set
type flags struct {
	host     string
	port     string
	apps     string
	options  string
	logLevel string
	dev      bool
}

func (f *flags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.host, "host", "", "control API host (HOST)")
	pf.StringVarP(&f.port, "port", "p", "", "control API port (PORT)")
	pf.StringVarP(&f.apps, "apps", "a", "", "application descriptor directory (APPS_DIR)")
	pf.StringVar(&f.options, "options", "", "animation options file, watched for changes (OPTIONS_FILE)")
	pf.StringVarP(&f.logLevel, "log-level", "l", "", "log level: debug, info, warn, error (LOG_LEVEL)")
	pf.BoolVar(&f.dev, "dev", false, "development logging (LOG_DEV)")
}

// load reads the environment and applies the flags given on the command line
func (f *flags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	pf := cmd.Flags()
	if pf.Changed("host") {
		cfg.Server.Host = f.host
	}
	if pf.Changed("port") {
		cfg.Server.Port = f.port
	}
	if pf.Changed("apps") {
		cfg.Catalog.Dir = f.apps
	}
	if pf.Changed("options") {
		cfg.Animation.OptionsFile = f.options
	}
	if pf.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if pf.Changed("dev") {
		cfg.Logging.Development = f.dev
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "shell",
		Short: "Application shell and window compositor for embedded Linux devices",
		Long: `shell starts applications from a catalog of descriptors, composites their
windows with animated transitions, drives the launcher, app switcher and
on-screen keyboard, and evicts background applications under memory pressure.

Configuration comes from the environment; flags override it.

Examples:
  shell                          Run the shell
  shell --apps ./apps --dev      Run against a local catalog with debug logs
  shell apps -f json             List the catalog as JSON
  shell options                  Print the effective animation options`,
		SilenceUsage: true,
	}
	f.register(root)

	run := &cobra.Command{
		Use:   "run",
		Short: "Run the shell (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, f)
		},
	}
	root.RunE = run.RunE

	root.AddCommand(run, newAppsCmd(f), newOptionsCmd(f), &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}

func runShell(cmd *cobra.Command, f *flags) error {
	cfg, err := f.load(cmd)
	if err != nil {
		return err
	}

	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
	defer logger.Sync()
	logger.Info("Starting shell", zap.String("version", version))

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Error("Failed to create shell", zap.Error(err))
		return err
	}
	return srv.Run(cmd.Context())
}

func newAppsCmd(f *flags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "List the application catalog",
		Long: `Load every descriptor in the catalog directory and print the resolved
definitions. Descriptors that fail to load are reported with --log-level warn.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			level := cfg.Logging.Level
			if !cmd.Flags().Changed("log-level") {
				level = "error"
			}
			logger := logging.FromSettings(level, cfg.Logging.Development)
			defer logger.Sync()

			cat, err := catalog.Load(cfg.Catalog.Dir, catalog.Options{
				Pattern: cfg.Catalog.Pattern,
				BinDir:  cfg.Catalog.BinDir,
				DataDir: cfg.Catalog.DataDir,
			}, logger.Logger)
			if err != nil {
				return err
			}
			return printApps(cmd.OutOrStdout(), cat, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json, yaml")
	return cmd
}

type appRow struct {
	ID       uint32 `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category" yaml:"category"`
	Role     string `json:"role" yaml:"role"`
	Path     string `json:"path" yaml:"path"`
	Args     string `json:"args,omitempty" yaml:"args,omitempty"`
	Icon     string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

func printApps(w io.Writer, cat *catalog.Catalog, format string) error {
	rows := make([]appRow, 0, cat.Len())
	for _, d := range cat.List() {
		rows = append(rows, appRow{
			ID:       d.ID,
			Name:     d.Name,
			Category: d.Category,
			Role:     d.Role().String(),
			Path:     d.Path,
			Args:     d.Args,
			Icon:     d.Icon,
		})
	}

	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		data, err := yaml.Marshal(rows)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tROLE\tPATH")
		for _, r := range rows {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Category, r.Role, r.Path)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q, want table, json or yaml", format)
	}
}

func newOptionsCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "options",
		Short: "Print the effective animation options as YAML",
		Long: `Print the animation options the shell would start with: the environment
defaults overlaid with the options file. The output is a valid options file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			opts := cfg.Animation.Options()
			if path := cfg.Animation.OptionsFile; path != "" {
				if opts, err = config.LoadOptions(path, opts); err != nil {
					return err
				}
			}
			data, err := config.MarshalOptions(opts)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
