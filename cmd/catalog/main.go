// Command catalog serves the signup wizard and the user directory.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gabrielmiguelok/golivecatalog/internal/config"
	"github.com/gabrielmiguelok/golivecatalog/internal/server"
	"github.com/gabrielmiguelok/golivecatalog/pkg/forms"
	"github.com/gabrielmiguelok/golivecatalog/pkg/live"
	"github.com/gabrielmiguelok/golivecatalog/pkg/logging"
	"github.com/gabrielmiguelok/golivecatalog/pkg/remote"
	"github.com/gabrielmiguelok/golivecatalog/pkg/state"
)

var version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg    config.Config
	logger logging.Logger
}

func rootCmd() *cobra.Command {
	a := &app{}
	var debug, jsonLogs bool

	cmd := &cobra.Command{
		Use:          "catalog",
		Short:        "Signup wizard and user directory server",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug = debug
			}
			if cmd.Flags().Changed("json-logs") {
				cfg.JSONLogs = jsonLogs
			}
			a.cfg = cfg
			a.logger = newLogger(cfg)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Write logs as JSON")
	cmd.AddCommand(serveCmd(a), usersCmd(a), versionCmd())
	return cmd
}

func newLogger(cfg config.Config) logging.Logger {
	opts := []logging.LoggerOption{logging.WithLevel(slog.LevelInfo)}
	if cfg.Debug {
		opts[0] = logging.WithLevel(slog.LevelDebug)
	}
	if cfg.JSONLogs {
		opts = append(opts, logging.WithJSON())
	}
	return logging.NewSlogLogger(opts...)
}

func (a *app) usersFetcher() (*remote.Fetcher[remote.User], error) {
	return remote.NewUsersFetcher(
		remote.WithHTTPClient(&http.Client{Timeout: a.cfg.FetchTimeout}),
		remote.WithCacheSize(a.cfg.CacheSize),
		remote.WithLogger(a.logger),
	)
}

func serveCmd(a *app) *cobra.Command {
	var addr, usersURL, schemaPath string
	var submitDelay time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and live server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Address = addr
			}
			if cmd.Flags().Changed("users-url") {
				a.cfg.UsersURL = usersURL
			}
			if cmd.Flags().Changed("submit-delay") {
				a.cfg.SubmitDelay = submitDelay
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			wizardOpts := []live.WizardOption{
				live.WithSubmitter(forms.NewSimulatedSubmitter(a.cfg.SubmitDelay)),
				live.WithWizardLogger(a.logger),
			}
			if schemaPath != "" {
				schema, err := loadSchema(schemaPath)
				if err != nil {
					return err
				}
				wizardOpts = append(wizardOpts, live.WithSchema(schema))
			}

			store := state.NewMemoryStore(time.Minute)
			defer store.Close()
			wizardOpts = append(wizardOpts, live.WithDrafts(state.NewDraftManager(store, state.WithTTL(a.cfg.DraftTTL))))

			fetcher, err := a.usersFetcher()
			if err != nil {
				return err
			}

			registry := live.NewRegistry()
			registry.Register(live.SignupWizardName, live.NewSignupWizard(wizardOpts...))
			registry.Register(live.UserDirectoryName, live.NewUserDirectory(fetcher, a.cfg.UsersURL))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.logger.Info("starting catalog",
				logging.String("version", version),
				logging.String("users_url", a.cfg.UsersURL),
				logging.Any("components", registry.Names()),
			)
			return server.New(a.cfg, registry, fetcher, a.logger).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from CATALOG_ADDR or :3000)")
	cmd.Flags().StringVar(&usersURL, "users-url", "", "Users list endpoint")
	cmd.Flags().DurationVar(&submitDelay, "submit-delay", forms.DefaultSubmitDelay, "Simulated submission latency")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "YAML file with the signup validation rules")
	return cmd
}

func loadSchema(path string) (forms.Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema: %w", err)
	}
	defer f.Close()

	schema, err := forms.LoadSchema(f)
	if err != nil {
		return nil, err
	}
	if err := schema.Check(forms.SignupFields()); err != nil {
		return nil, err
	}
	return schema, nil
}

func usersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "users [query]",
		Short: "Fetch the users list once and print it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fetcher, err := a.usersFetcher()
			if err != nil {
				return err
			}

			s, err := fetcher.Fetch(cmd.Context(), a.cfg.UsersURL).Wait(cmd.Context())
			if err != nil {
				return err
			}
			if s.Status == remote.StatusFailed {
				return fmt.Errorf("%s: %w", s.Message(), s.Failure)
			}

			var query string
			if len(args) == 1 {
				query = args[0]
			}
			users := remote.FilterUsers(s.Items, query)
			if len(users) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No users found")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, u := range users {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", u.ID, u.Login, u.HTMLURL)
			}
			return tw.Flush()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
