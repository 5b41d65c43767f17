package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sophialabs/apitrail/internal/app"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		cfg        app.Config
	)

	root := &cobra.Command{
		Use:           "apitrail",
		Short:         "Record grouped API events and follow them live",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := app.LoadConfigFile(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "apitrail.yaml", "YAML config file (missing file means defaults)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd(&cfg))
	root.AddCommand(watchCmd(&cfg))
	return root
}

func serveCmd(cfg *app.Config) *cobra.Command {
	var (
		port       int
		dbPath     string
		bannerFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the recording server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("db") {
				cfg.Server.DatabasePath = dbPath
			}
			if cmd.Flags().Changed("banner") {
				cfg.Server.BannerFile = bannerFile
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a, err := app.New(*cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			return a.Run(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP server port")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (:memory: for none)")
	cmd.Flags().StringVar(&bannerFile, "banner", "", "banner text file, reloaded on change")
	return cmd
}

func watchCmd(cfg *app.Config) *cobra.Command {
	var (
		url       string
		transport string
		filter    string
		fields    []string
		verbose   bool
		noColor   bool
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a server's groups live in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("url") {
				cfg.Watch.URL = url
			}
			if flags.Changed("transport") {
				cfg.Watch.Transport = transport
			}
			if flags.Changed("filter") {
				cfg.Watch.Filter = filter
			}
			if flags.Changed("field") {
				cfg.Watch.Fields = fields
			}
			if flags.Changed("verbose") {
				cfg.Watch.Verbose = verbose
			}
			if flags.Changed("no-color") {
				cfg.Watch.Color = !noColor
			}
			if flags.Changed("limit") {
				cfg.Watch.SnapshotLimit = limit
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return app.RunWatch(cmd.Context(), *cfg, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "server base URL, e.g. http://localhost:8080")
	cmd.Flags().StringVar(&transport, "transport", "sse", "push channel: sse or ws")
	cmd.Flags().StringVar(&filter, "filter", "", `expr filter, e.g. status == "FAILURE"`)
	cmd.Flags().StringArrayVar(&fields, "field", nil, "event data column: $.json.path or /xpath (repeatable)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show every event under its group")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable styling")
	cmd.Flags().IntVar(&limit, "limit", 50, "number of groups in the initial snapshot")
	return cmd
}
