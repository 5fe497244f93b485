package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped by the release build.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "tradewire",
	Short: "TradeWire is a trading backend client",
	Long: `A command line client for the TradeWire trading backend: login,
watchlist, quotes, orders, wallet and transaction reports over an
authenticated session with sliding expiry.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
