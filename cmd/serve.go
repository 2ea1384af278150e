package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/datachat/datachat/internal/api"
	"github.com/datachat/datachat/internal/config"
	"github.com/datachat/datachat/internal/engine"
	"github.com/datachat/datachat/internal/logging"
	"github.com/datachat/datachat/internal/ws"
)

var (
	servePort   int
	serveCORS   bool
	serveStatic string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the upload, chat and report API. MongoDB-backed features
(projects, queries, chat history) need mongo.uri; reports need llm.provider.
The built frontend is served from server.static_dir when set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadOrDefault(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if cmd.Flags().Changed("cors") {
			cfg.Server.CORS = serveCORS
		}
		if serveStatic != "" {
			cfg.Server.StaticDir = serveStatic
		}
		if problems := cfg.Validate(); len(problems) > 0 {
			return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
		}

		logger, err := logging.Setup(effectiveLevel(cfg), cfg.Logging.Directory)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng, err := engine.Open(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := eng.Close(closeCtx); err != nil {
				logger.Warn("closing document store", "error", err)
			}
		}()

		hub := ws.NewHub(logger)
		go hub.Run(ctx)

		opts := []api.Option{api.WithHub(hub), api.WithCORS(cfg.Server.CORS)}
		if cfg.Server.StaticDir != "" {
			dir := config.ExpandHome(cfg.Server.StaticDir)
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				return fmt.Errorf("server.static_dir %q is not a directory", dir)
			}
			opts = append(opts, api.WithStaticFS(os.DirFS(dir)))
		}

		srv := api.New(eng, logger, cfg.Server.Port, opts...)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		fmt.Fprintf(os.Stderr, "datachat API: http://localhost:%d\n", cfg.Server.Port)

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, fmt.Sprintf("port for the API server (default %d)", config.DefaultPort))
	serveCmd.Flags().BoolVar(&serveCORS, "cors", false, "allow cross-origin requests (overrides server.cors)")
	serveCmd.Flags().StringVar(&serveStatic, "static", "", "directory of the built frontend (overrides server.static_dir)")
	rootCmd.AddCommand(serveCmd)
}
