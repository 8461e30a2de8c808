package main

import (
	"github.com/spf13/cobra"

	"b2b_workflow/internal/model"
	"b2b_workflow/internal/store"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Manage consumer-supplier links",
}

var linkCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Request a link with a supplier (consumer only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := actorFrom(cmd)
		if err != nil {
			return err
		}
		supplier, _ := cmd.Flags().GetInt64("supplier")
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		link, err := s.engine.CreateLink(cmd.Context(), actor, store.NewLink{SupplierID: supplier})
		if err != nil {
			return err
		}
		return printJSON(cmd, link)
	},
}

func init() {
	linkCreateCmd.Flags().Int64("supplier", 0, "supplier id")
	_ = linkCreateCmd.MarkFlagRequired("supplier")

	linkCmd.AddCommand(
		linkCreateCmd,
		verbCommand(model.KindLink, "approve", "Approve a pending link", nil),
		verbCommand(model.KindLink, "reject", "Reject a pending link", nil),
		verbCommand(model.KindLink, "remove", "Remove a link", nil),
		verbCommand(model.KindLink, "block", "Block an approved link", nil),
	)
	rootCmd.AddCommand(linkCmd)
}
