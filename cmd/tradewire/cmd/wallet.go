package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfold/tradewire/format"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Show wallet balances",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		w, err := a.client.Wallet(cmd.Context())
		if err != nil {
			return err
		}

		f := format.New(locale)
		for _, b := range w.Balances {
			available, err := f.Money(b.Available, b.Currency)
			if err != nil {
				available = b.Currency + " " + b.Available
			}
			reserved, err := f.Money(b.Reserved, b.Currency)
			if err != nil {
				reserved = b.Currency + " " + b.Reserved
			}
			fmt.Printf("%-4s available %-16s reserved %s\n", b.Currency, available, reserved)
		}
		fmt.Printf("As of %s\n", time.Unix(w.UpdatedAt, 0).Local().Format(time.RFC1123))
		return nil
	},
}

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Show transaction history",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		from := time.Time{}
		if reportDays > 0 {
			from = time.Now().AddDate(0, 0, -reportDays)
		}
		txns, err := a.client.Transactions(cmd.Context(), from, time.Time{})
		if err != nil {
			return err
		}
		if len(txns) == 0 {
			fmt.Println("No transactions")
			return nil
		}

		f := format.New(locale)
		for _, t := range txns {
			amount, err := f.Money(t.Amount, t.Currency)
			if err != nil {
				amount = t.Currency + " " + t.Amount
			}
			fmt.Printf("%s  %-10s %-8s %s\n",
				time.Unix(t.Timestamp, 0).Local().Format("2006-01-02 15:04"),
				t.Kind, t.Symbol, amount)
		}
		return nil
	},
}

var reportDays int

func init() {
	rootCmd.AddCommand(walletCmd)
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.Flags().IntVar(&reportDays, "days", 30, "How many days of history to fetch (0 for all)")
}
