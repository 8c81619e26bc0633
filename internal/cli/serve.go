package cli

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loamdb/loam/internal/server"
	"github.com/loamdb/loam/web"
)

var (
	servePort int
	serveDev  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the schema dashboard",
	Long: `Serve a read-only dashboard on localhost showing migration
history, the live schema, and drift against the declared schema.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		staticFS, err := fs.Sub(web.StaticFS, "static")
		if err != nil {
			return fmt.Errorf("loading embedded dashboard: %w", err)
		}

		srv := server.New(db, cfg, logger, servePort,
			server.WithStaticFS(staticFS),
			server.WithDevMode(serveDev),
		)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		fmt.Fprintf(os.Stderr, "loam dashboard: http://localhost:%d\n", servePort)

		select {
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
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
	serveCmd.Flags().IntVar(&servePort, "port", 5626, "port for the dashboard server")
	serveCmd.Flags().BoolVar(&serveDev, "dev", false, "enable CORS for development mode")
	rootCmd.AddCommand(serveCmd)
}
