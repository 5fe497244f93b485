package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/quantfold/tradewire/format"
)

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Manage the watchlist",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.client.Watchlist(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Watchlist is empty")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%-8s %-30s %s\n", e.Symbol, e.Name, e.AssetType)
		}
		return nil
	},
}

var watchlistAddCmd = &cobra.Command{
	Use:   "add <symbol>",
	Short: "Add a symbol to the watchlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.client.AddToWatchlist(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Added %s\n", args[0])
		return nil
	},
}

var watchlistRemoveCmd = &cobra.Command{
	Use:   "remove <symbol>",
	Short: "Remove a symbol from the watchlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.client.RemoveFromWatchlist(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

var quoteCmd = &cobra.Command{
	Use:   "quote <symbol>",
	Short: "Show the latest quote for a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		q, err := a.client.Quote(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		f := format.New(locale)
		last, err := f.Money(strconv.FormatFloat(q.Last, 'f', -1, 64), q.Currency)
		if err != nil {
			last = fmt.Sprintf("%s %.2f", q.Currency, q.Last)
		}
		fmt.Printf("%s  last %s  bid %.2f  ask %.2f\n", q.Symbol, last, q.Bid, q.Ask)
		return nil
	},
}

var locale string

func init() {
	rootCmd.AddCommand(watchlistCmd)
	watchlistCmd.AddCommand(watchlistAddCmd)
	watchlistCmd.AddCommand(watchlistRemoveCmd)
	rootCmd.AddCommand(quoteCmd)
	rootCmd.PersistentFlags().StringVar(&locale, "locale", "en", "Locale for money and quantity formatting")
}
