package main

import "github.com/spf13/cobra"

func newFreeTimeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "free-time",
		Short: "Print free blocks between two instants as JSON",
		RunE:  runFreeTime,
	}

	cmd.Flags().String("start", "", "Range start, RFC 3339 (required)")
	cmd.Flags().String("end", "", "Range end, RFC 3339 (required)")
	cmd.Flags().Int("min-gap", 0, "Minimum block length in minutes (default: $AGENDA_MIN_GAP_MINUTES or 30)")

	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func runFreeTime(cmd *cobra.Command, _ []string) error {
	start, err := timeFlag(cmd, "start")
	if err != nil {
		return err
	}
	end, err := timeFlag(cmd, "end")
	if err != nil {
		return err
	}
	minGap, _ := cmd.Flags().GetInt("min-gap")

	a, err := openForCommand(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	blocks, err := a.service.FreeTime(cmd.Context(), start, end, minGap)
	if err != nil {
		return err
	}
	return printJSON(cmd, blocks)
}
