package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfold/tradewire/brokertest"
)

var (
	mockPort     int
	mockIdleMins int
)

var mockserverCmd = &cobra.Command{
	Use:   "mockserver",
	Short: "Run an in-process fake trading backend",
	Long: `Starts the fake broker on localhost for development and demos.
A single account is available: identifier "demo", password "demo-pass".
API docs are served at /docs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		broker, err := brokertest.New(
			brokertest.WithIdleTimeout(time.Duration(mockIdleMins) * time.Minute),
		)
		if err != nil {
			return err
		}

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", mockPort),
			Handler:           broker.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("mock broker failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Mock broker listening on port %d (docs at http://localhost:%d/docs)\n",
			mockPort, mockPort)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(mockserverCmd)
	mockserverCmd.Flags().IntVarP(&mockPort, "port", "p", 9200, "Port to listen on")
	mockserverCmd.Flags().IntVar(&mockIdleMins, "idle-timeout", 20, "Session idle timeout in minutes")
}
