package main

import (
	"github.com/spf13/cobra"

	"b2b_workflow/internal/engine"
	"b2b_workflow/internal/model"
	"b2b_workflow/internal/store"
	"b2b_workflow/internal/workflow"
)

var complaintCmd = &cobra.Command{
	Use:   "complaint",
	Short: "Manage complaints raised against orders",
}

var complaintCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Raise a complaint against one of your orders (consumer only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := actorFrom(cmd)
		if err != nil {
			return err
		}
		orderID, _ := cmd.Flags().GetUint("order")
		title, _ := cmd.Flags().GetString("title")
		desc, _ := cmd.Flags().GetString("description")
		priority, _ := cmd.Flags().GetString("priority")

		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		complaint, err := s.engine.CreateComplaint(cmd.Context(), actor, store.NewComplaint{
			OrderID:     orderID,
			Title:       title,
			Description: desc,
			Priority:    model.Priority(priority),
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, complaint)
	},
}

// triageCommand 生成修改投诉负责人或优先级的子命令。
func triageCommand(use, short string, build func(cmd *cobra.Command) engine.ComplaintTriage) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			actor, err := actorFrom(cmd)
			if err != nil {
				return err
			}
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			rec, err := s.engine.TriageComplaint(cmd.Context(), id, actor, build(cmd))
			if err != nil {
				return err
			}
			return printJSON(cmd, rec)
		},
	}
}

func init() {
	complaintCreateCmd.Flags().Uint("order", 0, "order id")
	complaintCreateCmd.Flags().String("title", "", "short title")
	complaintCreateCmd.Flags().String("description", "", "details")
	complaintCreateCmd.Flags().String("priority", "", "low|medium|high (default medium)")
	_ = complaintCreateCmd.MarkFlagRequired("order")

	resolve := verbCommand(model.KindComplaint, "resolve", "Resolve a complaint with notes", func(cmd *cobra.Command) map[string]string {
		notes, _ := cmd.Flags().GetString("notes")
		return map[string]string{workflow.FieldResolutionNotes: notes}
	})
	resolve.Flags().String("notes", "", "resolution notes")

	assign := triageCommand("assign", "Assign a complaint to a supplier staff member", func(cmd *cobra.Command) engine.ComplaintTriage {
		to, _ := cmd.Flags().GetInt64("to")
		return engine.ComplaintTriage{AssigneeID: &to}
	})
	assign.Flags().Int64("to", 0, "staff user id")
	_ = assign.MarkFlagRequired("to")

	prioritize := triageCommand("prioritize", "Change the priority of a complaint", func(cmd *cobra.Command) engine.ComplaintTriage {
		raw, _ := cmd.Flags().GetString("priority")
		p := model.Priority(raw)
		return engine.ComplaintTriage{Priority: &p}
	})
	prioritize.Flags().String("priority", "", "low|medium|high")
	_ = prioritize.MarkFlagRequired("priority")

	complaintCmd.AddCommand(
		complaintCreateCmd,
		verbCommand(model.KindComplaint, "start", "Start working on an open complaint", nil),
		verbCommand(model.KindComplaint, "escalate", "Escalate a complaint in progress", nil),
		resolve,
		assign,
		prioritize,
	)
	rootCmd.AddCommand(complaintCmd)
}
