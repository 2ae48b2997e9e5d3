// Command server exposes the GoVNA core over HTTP: Touchstone scans,
// VSWR summaries and Prometheus metrics.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/momentics/govna/pkg/govna"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		listen     string
		logLevel   string
		baudRate   int
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "HTTP front end for NanoVNA devices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := defaultConfig()
			if configPath != "" {
				loaded, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			// Flags win over the config file.
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("baud") {
				cfg.BaudRate = baudRate
			}

			level, err := logrus.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)

			return run(cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to TOML config file")
	cmd.Flags().StringVarP(&listen, "listen", "l", ":8080", "listen address")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().IntVar(&baudRate, "baud", 115200, "serial baud rate")

	return cmd
}

func run(cfg serverConfig) error {
	pool := govna.NewVNAPoolWithOpener(govna.DefaultPortOpener(cfg.BaudRate))
	defer pool.CloseAll()

	server := &http.Server{
		Addr:    cfg.Listen,
		Handler: setupRouter(pool, cfg),
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("listening on %s", cfg.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logrus.Infof("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	logrus.Info("server stopped")
	return nil
}
