package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"resource-planner/backend/internal/dto"
)

func newWeekCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "week",
		Short: "查看服务端的周视图",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadRemoteFlags(v)
			if err != nil {
				return err
			}
			week, err := f.weekStart(time.Now())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			logger := f.logger()
			defer logger.Sync()

			o, err := f.client(ctx, logger).GetWeekOverview(ctx, f.Resource, week)
			if err != nil {
				return err
			}
			writeRemoteOverview(cmd.OutOrStdout(), o)
			return nil
		},
	}
}

func writeRemoteOverview(w io.Writer, o *dto.WeekOverviewResponse) {
	fmt.Fprintf(w, "资源 %s  周 %s  状态 %s  合计 %s\n", o.ResourceID, o.WeekStart, o.State, o.TotalHours)

	fmt.Fprintln(w, "\n每日:")
	for _, d := range o.Daily {
		line := fmt.Sprintf("  %-9s %6s  剩余 %5s", d.Day, d.TotalHours, d.RemainingHours)
		if d.WarningMessage != "" {
			line += fmt.Sprintf("  [%s] %s", d.Severity, d.WarningMessage)
		}
		fmt.Fprintln(w, line)
	}

	if len(o.Allocations) > 0 {
		fmt.Fprintln(w, "\n分配:")
		for _, a := range o.Allocations {
			name := a.ProjectName
			if name == "" {
				name = a.AllocationID
			}
			fmt.Fprintf(w, "  %-12s %6s / %6s  %s%%  [%s]\n", name, a.WeeklyHours, a.AllocatedHours, a.Percentage, a.Status)
		}
	}

	if !o.Submission.CanSubmit && o.Submission.ErrorMessage != "" {
		fmt.Fprintf(w, "\n无法提交: %s\n", o.Submission.ErrorMessage)
	}
}
