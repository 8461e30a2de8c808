package main

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"b2b_workflow/internal/model"
	"b2b_workflow/internal/store"
	"b2b_workflow/internal/workflow"
)

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Manage orders placed over approved links",
}

var orderCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Place an order on an approved link (consumer only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := actorFrom(cmd)
		if err != nil {
			return err
		}
		linkID, _ := cmd.Flags().GetUint("link")
		amount, _ := cmd.Flags().GetFloat64("amount")
		in := store.NewOrder{LinkID: linkID, TotalAmount: amount}
		if raw, _ := cmd.Flags().GetString("delivery"); raw != "" {
			d, err := time.Parse("2006-01-02", raw)
			if err != nil {
				return errors.Wrap(err, "--delivery must be YYYY-MM-DD")
			}
			in.DeliveryDate = &d
		}

		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		order, err := s.engine.CreateOrder(cmd.Context(), actor, in)
		if err != nil {
			return err
		}
		return printJSON(cmd, order)
	},
}

func init() {
	orderCreateCmd.Flags().Uint("link", 0, "approved link id")
	orderCreateCmd.Flags().Float64("amount", 0, "total amount")
	orderCreateCmd.Flags().String("delivery", "", "delivery date (YYYY-MM-DD)")
	_ = orderCreateCmd.MarkFlagRequired("link")

	reject := verbCommand(model.KindOrder, "reject", "Reject a pending order with a reason", func(cmd *cobra.Command) map[string]string {
		reason, _ := cmd.Flags().GetString("reason")
		return map[string]string{workflow.FieldRejectionReason: reason}
	})
	reject.Flags().String("reason", "", "rejection reason")

	accept := verbCommand(model.KindOrder, "accept", "Accept a pending order, optionally confirming the delivery date", func(cmd *cobra.Command) map[string]string {
		delivery, _ := cmd.Flags().GetString("delivery")
		return map[string]string{workflow.FieldDeliveryDate: delivery}
	})
	accept.Flags().String("delivery", "", "confirmed delivery date (YYYY-MM-DD)")

	orderCmd.AddCommand(
		orderCreateCmd,
		accept,
		reject,
		verbCommand(model.KindOrder, "start", "Start fulfilling an accepted order", nil),
		verbCommand(model.KindOrder, "complete", "Complete an order in progress", nil),
		verbCommand(model.KindOrder, "cancel", "Cancel a pending or accepted order", nil),
	)
	rootCmd.AddCommand(orderCmd)
}
