package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/revify/internal/config"
	"github.com/sprite-ai/revify/internal/devserver"
	"github.com/sprite-ai/revify/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a local development backend",
	Long: `Start an in-memory code-review backend for local development.

It speaks the same API as the real backend. Sign-in is simulated: visiting
/auth/google signs you in immediately. Nothing is persisted.

Endpoints:
  GET  /health                                 health check
  GET  /auth/google, /auth/me, POST /auth/logout
  *    /sessions, /sessions/{id}/...           sessions, files, comments
  GET  /sessions/{id}/uploads/{upload}/events  upload progress (SSE)`,
	Args: cobra.NoArgs,
	Annotations: map[string]string{
		annotationStandalone: "true",
	},
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("addr", "a", "", "address to listen on (default from config, 127.0.0.1:3000)")
	serveCmd.Flags().String("web-url", "", "where sign-in redirects land (default http://<addr>)")
	serveCmd.Flags().Duration("step-delay", 300*time.Millisecond, "delay between upload processing steps")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.Console(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Serve.Addr
	}
	webURL, _ := cmd.Flags().GetString("web-url")
	if webURL == "" {
		webURL = "http://" + addr
	}
	stepDelay, _ := cmd.Flags().GetDuration("step-delay")

	srv := devserver.New(devserver.Options{
		Addr:        addr,
		WebURL:      webURL,
		MaxFileSize: cfg.Serve.MaxFileSize,
		MaxUpload:   cfg.Serve.MaxUpload,
		StepDelay:   stepDelay,
		Logger:      logger,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	fmt.Fprintf(cmd.OutOrStdout(), "revify dev backend on http://%s\n", addr)
	fmt.Fprintf(cmd.OutOrStdout(), "Point the client at it with %s=http://%s\n", config.EnvAPIURL, addr)

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}

	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutting down: %w", err)
	}
	return <-errCh
}
