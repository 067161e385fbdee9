package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/agenda/internal/application"
	"github.com/example/agenda/internal/record"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report conflicts a record would have without storing it",
		RunE:  runCheck,
	}

	cmd.Flags().String("id", "", "ID of a stored record being rescheduled")
	cmd.Flags().String("owner", "", "Owner ID (required)")
	cmd.Flags().String("name", "", "Record name (required)")
	cmd.Flags().String("start", "", "Start time, RFC 3339 (required)")
	cmd.Flags().String("end", "", "End time, RFC 3339 (required)")
	cmd.Flags().String("priority", string(record.PrioritySoft), "Priority: hard or soft")

	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func runCheck(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	id, _ := flags.GetString("id")
	owner, _ := flags.GetString("owner")
	name, _ := flags.GetString("name")
	priority, _ := flags.GetString("priority")

	start, err := timeFlag(cmd, "start")
	if err != nil {
		return err
	}
	end, err := timeFlag(cmd, "end")
	if err != nil {
		return err
	}

	a, err := openForCommand(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.service.CheckConflicts(cmd.Context(), application.RecordInput{
		ID:        id,
		OwnerID:   owner,
		Name:      name,
		Priority:  record.Priority(priority),
		StartTime: &start,
		EndTime:   &end,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, result)
}

func openForCommand(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	return bootstrap(cmd.Context(), cfg, logger)
}

func timeFlag(cmd *cobra.Command, name string) (time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be an RFC 3339 timestamp: %w", name, err)
	}
	return ts, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}
