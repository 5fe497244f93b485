package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfold/tradewire/client"
)

var (
	orderSide  string
	orderType  string
	orderQty   string
	orderPrice string
)

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Place, list and cancel orders",
}

var orderPlaceCmd = &cobra.Command{
	Use:   "place <symbol>",
	Short: "Place an order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		o, err := a.client.PlaceOrder(cmd.Context(), client.OrderRequest{
			Symbol:   args[0],
			Side:     orderSide,
			Type:     orderType,
			Quantity: orderQty,
			Price:    orderPrice,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Order %s placed: %s %s %s @ %s (%s)\n",
			o.ID, o.Side, o.Quantity, o.Symbol, orDash(o.Price), o.Status)
		return nil
	},
}

var orderListCmd = &cobra.Command{
	Use:   "list [status]",
	Short: "List orders, optionally filtered by status",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		status := ""
		if len(args) == 1 {
			status = args[0]
		}
		orders, err := a.client.Orders(cmd.Context(), status)
		if err != nil {
			return err
		}
		if len(orders) == 0 {
			fmt.Println("No orders")
			return nil
		}
		for _, o := range orders {
			fmt.Printf("%-36s %-6s %-8s %8s @ %-10s %-10s %s\n",
				o.ID, o.Side, o.Symbol, o.Quantity, orDash(o.Price), o.Status,
				time.Unix(o.CreatedAt, 0).Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var orderCancelCmd = &cobra.Command{
	Use:   "cancel <order-id>",
	Short: "Cancel an open order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.client.CancelOrder(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Cancelled %s\n", args[0])
		return nil
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(orderCmd)
	orderCmd.AddCommand(orderPlaceCmd)
	orderCmd.AddCommand(orderListCmd)
	orderCmd.AddCommand(orderCancelCmd)
	orderPlaceCmd.Flags().StringVar(&orderSide, "side", "buy", "Order side: buy or sell")
	orderPlaceCmd.Flags().StringVar(&orderType, "type", "market", "Order type: market or limit")
	orderPlaceCmd.Flags().StringVar(&orderQty, "qty", "", "Quantity (required)")
	orderPlaceCmd.Flags().StringVar(&orderPrice, "price", "", "Limit price")
	orderPlaceCmd.MarkFlagRequired("qty")
}
