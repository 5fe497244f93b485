package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.client.SessionData(cmd.Context())
		if err != nil {
			return err
		}
		if rec == nil {
			fmt.Println("Not logged in")
			return nil
		}

		remaining := time.Until(rec.ExtendedExpiry).Round(time.Second)
		fmt.Printf("User:          %s (%s)\n", rec.User.DisplayName, rec.User.Username)
		fmt.Printf("Logged in at:  %s\n", rec.LoginTime.Local().Format(time.RFC1123))
		fmt.Printf("Last activity: %s\n", rec.LastCallTime.Local().Format(time.RFC1123))
		fmt.Printf("Valid until:   %s (%s remaining)\n",
			rec.ExtendedExpiry.Local().Format(time.RFC1123), remaining)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
