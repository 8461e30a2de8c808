package main

import (
	"github.com/spf13/cobra"

	"b2b_workflow/internal/model"
)

var getCmd = &cobra.Command{
	Use:   "get <kind> <id>",
	Short: "Show a link, order or complaint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, id, err := parseTarget(args)
		if err != nil {
			return err
		}
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		rec, err := s.store.Get(cmd.Context(), kind, id)
		if err != nil {
			return err
		}
		return printJSON(cmd, rec)
	},
}

var actionsCmd = &cobra.Command{
	Use:   "actions <kind> <id>",
	Short: "List the transitions available now and whether --role may perform them",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, id, err := parseTarget(args)
		if err != nil {
			return err
		}
		roleFlag, _ := cmd.Flags().GetString("role")
		role, err := model.ParseRole(roleFlag)
		if err != nil {
			return err
		}
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		_, actions, err := s.engine.Actions(cmd.Context(), kind, id, role)
		if err != nil {
			return err
		}
		return printJSON(cmd, actions)
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs <kind> <id>",
	Short: "Show the audit trail of a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, id, err := parseTarget(args)
		if err != nil {
			return err
		}
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		logs, err := s.store.ListLogs(cmd.Context(), kind, id)
		if err != nil {
			return err
		}
		return printJSON(cmd, logs)
	},
}

func parseTarget(args []string) (model.Kind, uint, error) {
	kind, err := model.ParseKind(args[0])
	if err != nil {
		return "", 0, err
	}
	id, err := parseID(args[1])
	if err != nil {
		return "", 0, err
	}
	return kind, id, nil
}

func init() {
	rootCmd.AddCommand(getCmd, actionsCmd, logsCmd)
}
