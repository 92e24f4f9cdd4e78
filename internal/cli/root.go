// Package cli implements the revify command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sprite-ai/revify/internal/api"
	"github.com/sprite-ai/revify/internal/auth"
	"github.com/sprite-ai/revify/internal/config"
	"github.com/sprite-ai/revify/internal/logging"
	"github.com/sprite-ai/revify/internal/router"
)

// Command annotations read by the root command.
const (
	// annotationRoute names the in-app route a command stands for. Protected
	// routes require a signed-in user.
	annotationRoute = "route"
	// annotationStandalone marks commands that need no config or backend.
	annotationStandalone = "standalone"
)

var errNotSignedIn = errors.New("not signed in, run `revify login` first")

var rootCmd = &cobra.Command{
	Use:   "revify",
	Short: "Instant code review without PRs",
	Long: `revify is a client for the code-review backend.

Upload a ZIP of your code into a session, share the link, and review it
line by line from the terminal.

Examples:
  revify login                      # sign in through the browser
  revify sessions create --title x  # start a session
  revify upload <session> code.zip  # upload a snapshot
  revify browse                     # open the interactive UI`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: teardown,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default <data dir>/config.yaml)")
	rootCmd.PersistentFlags().String("api-url", "", "backend URL, also used for events and web links")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(inviteCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(commentsCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(browseCmd)
}

// Execute runs the root command. Interrupts cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// deps is what commands share. setup builds it once per invocation.
type deps struct {
	cfg      *config.Config
	log      zerolog.Logger
	closeLog func()
	client   *api.Client
	auth     *auth.Store
}

type depsKey struct{}

func depsFrom(cmd *cobra.Command) *deps {
	d, _ := cmd.Context().Value(depsKey{}).(*deps)
	return d
}

func setup(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[annotationStandalone] != "" {
		return nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closeLog, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	log.Logger = logger

	client, err := api.NewClient(api.Options{
		BaseURL:   cfg.APIURL,
		EventsURL: cfg.EventsURL,
		Timeout:   cfg.Timeout,
		Logger:    logger,
	})
	if err != nil {
		closeLog()
		return fmt.Errorf("creating api client: %w", err)
	}

	creds, err := config.LoadCredentials(cfg.CredentialsFile())
	if err != nil {
		logger.Warn().Err(err).Msg("ignoring unreadable credentials")
	} else if creds.APIURL == cfg.APIURL {
		client.SetCookies(creds.HTTPCookies())
	}

	d := &deps{
		cfg:      cfg,
		log:      logger,
		closeLog: closeLog,
		client:   client,
		auth:     auth.NewStore(client, cfg.WebURL, logger),
	}
	cmd.SetContext(context.WithValue(cmd.Context(), depsKey{}, d))

	logger.Debug().Str("command", cmd.CommandPath()).Str("api", cfg.APIURL).Msg("starting")
	return guard(cmd, d)
}

func teardown(cmd *cobra.Command, args []string) {
	if d := depsFrom(cmd); d != nil {
		d.closeLog()
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		dataDir := os.Getenv(config.EnvDataDir)
		if dataDir == "" {
			dataDir = config.DefaultDataDir()
		}
		path = config.DefaultPath(dataDir)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if apiURL, _ := cmd.Flags().GetString("api-url"); apiURL != "" {
		cfg.APIURL = apiURL
		cfg.EventsURL = apiURL
		cfg.WebURL = apiURL
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// guard applies the route guard to commands that stand for a protected
// route. The identity check runs to completion first, so the guard never
// has to wait.
func guard(cmd *cobra.Command, d *deps) error {
	path, ok := cmd.Annotations[annotationRoute]
	if !ok {
		return nil
	}
	d.auth.Init(cmd.Context())
	decision := router.Guard(d.auth, router.Match(path))
	if decision.Outcome == router.Redirect {
		d.log.Debug().Str("route", path).Str("target", decision.Target).Msg("guard redirect")
		return errNotSignedIn
	}
	return nil
}

// routeFor builds the annotation for a command standing for path.
func routeFor(path string) map[string]string {
	return map[string]string{annotationRoute: path}
}
