package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfold/tradewire/stream"
)

var watchCmd = &cobra.Command{
	Use:   "watch <symbol>...",
	Short: "Stream live ticks for one or more symbols",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.client.IsLoggedIn(cmd.Context()) {
			return errors.New("not logged in")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		relay := stream.NewRelay(a.cfg.API.FeedURL, a.sessions,
			stream.WithRelayLogger(a.logger))

		for _, symbol := range args {
			ch, cancel := relay.Subscribe(symbol)
			defer cancel()
			go func() {
				for tick := range ch {
					fmt.Printf("%s  %-8s last %.2f  bid %.2f  ask %.2f\n",
						time.Unix(tick.Timestamp, 0).Local().Format("15:04:05"),
						tick.Symbol, tick.Last, tick.Bid, tick.Ask)
				}
			}()
		}

		err = relay.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
