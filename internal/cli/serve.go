package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	transport "promptathon/internal/transport/http"
)

// NewServeCmd builds the subcommand that serves the web leaderboard.
func NewServeCmd(eventPath, port *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the leaderboard web UI and API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *eventPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", os.Getenv("LEADERBOARD_PORT"), "port to listen on")
	return cmd
}

func runServe(ctx context.Context, eventPath, portFlag string) error {
	eng, err := newEngine(ctx, eventPath)
	if err != nil {
		return err
	}
	defer eng.Close()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = eng.cfg.Server.Port
	}

	handler := transport.NewLeaderboardHandler(eng.leaderboard, eng.writer, eng.cfg.Title, eng.cfg.Refresh, eng.log)
	mux := http.NewServeMux()
	handler.Register(mux)

	server := &http.Server{
		Addr:        eng.cfg.Server.Host + ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		eng.log.Info().Str("addr", server.Addr).Msg("starting leaderboard server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			eng.log.Error().Err(err).Msg("server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		eng.log.Info().Msg("shutting down server")
	case <-ctx.Done():
		eng.log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
