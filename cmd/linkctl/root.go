package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"b2b_workflow/internal/engine"
	"b2b_workflow/internal/model"
	"b2b_workflow/internal/queue"
	"b2b_workflow/internal/store"
	"b2b_workflow/pkg/log"
)

var rootCmd = &cobra.Command{
	Use:   "linkctl",
	Short: "Operate links, orders and complaints directly on the workflow database",
	Long: `linkctl drives the workflow engine against a local SQLite file.
Every change goes through the same authorization table and state machine as the HTTP API,
and is recorded in the audit trail.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("db", "workflow.db", "SQLite database path")
	rootCmd.PersistentFlags().String("role", "", "acting role: owner|manager|sales_representative|consumer")
	rootCmd.PersistentFlags().Int64("user", 0, "acting user id")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug|info|warn|error")
}

// session 单条命令的运行环境：数据库、引擎与审计投递。
type session struct {
	db         *gorm.DB
	store      *store.Store
	engine     *engine.Engine
	dispatcher *queue.Dispatcher
}

func openSession(cmd *cobra.Command) (*session, error) {
	level, _ := cmd.Flags().GetString("log-level")
	if err := log.InitWriter(os.Stderr, log.Config{Level: level, Format: "text"}); err != nil {
		return nil, err
	}
	path, _ := cmd.Flags().GetString("db")
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(db); err != nil {
		return nil, err
	}
	st := store.New(db)
	d := queue.NewDispatcher(queue.NewAuditSink(st), queue.DispatcherConfig{QueueSize: 16, Workers: 1}, log.Logger("dispatcher"))
	return &session{
		db:         db,
		store:      st,
		engine:     engine.New(st, d, engine.WithLogger(log.Logger("engine"))),
		dispatcher: d,
	}, nil
}

// Close 等待审计写完再关库
func (s *session) Close() {
	s.dispatcher.Close()
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func actorFrom(cmd *cobra.Command) (model.Actor, error) {
	roleFlag, _ := cmd.Flags().GetString("role")
	role, err := model.ParseRole(roleFlag)
	if err != nil {
		return model.Actor{}, errors.Wrap(err, "--role")
	}
	user, _ := cmd.Flags().GetInt64("user")
	if user <= 0 {
		return model.Actor{}, errors.New("--user must be a positive id")
	}
	return model.Actor{ID: user, Role: role}, nil
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.Errorf("invalid id %q", s)
	}
	return uint(id), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// verbCommand 生成 "<kind> <verb> <id>" 子命令。fields 把命令行参数映射为附加字段。
func verbCommand(kind model.Kind, verb, short string, fields func(cmd *cobra.Command) map[string]string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <id>",
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

			var extra map[string]string
			if fields != nil {
				extra = fields(cmd)
			}
			rec, err := s.engine.Do(cmd.Context(), kind, id, verb, actor, extra)
			if err != nil {
				return err
			}
			return printJSON(cmd, rec)
		},
	}
}
