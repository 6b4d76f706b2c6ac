package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"resource-planner/backend/internal/timelog"
)

func newLogCmd(v *viper.Viper) *cobra.Command {
	var (
		allocationID string
		dayName      string
		hours        string
		submit       bool
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "填写某个分配某天的工时并保存",
		Example: `  timelogctl log --resource r1 --allocation a1 --day monday --hours 7.5
  timelogctl log --resource r1 --allocation a1 --day fri --hours 8 --submit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadRemoteFlags(v)
			if err != nil {
				return err
			}
			day, err := timelog.ParseDay(dayName)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			logger := f.logger()
			defer logger.Sync()

			sess, err := openSession(ctx, f, logger)
			if err != nil {
				return err
			}
			defer sess.Ledger().Close()

			if w := sess.DailyWarning(allocationID, day, hours); w.Severity != timelog.SeverityNone {
				printf(cmd, "提示: %s\n", w.WarningMessage)
			}

			changed, err := sess.Edit(allocationID, day, hours)
			if err != nil {
				return err
			}
			if changed {
				report, err := sess.Ledger().SaveAll(ctx)
				if err != nil {
					return err
				}
				if !report.OK() {
					return report.Err()
				}
				printf(cmd, "已保存 %s %s = %s\n", allocationID, day, timelog.FormatHours(sess.Ledger().Value(timelog.CellKey{AllocationID: allocationID, Day: day})))
			} else {
				printf(cmd, "工时未变化\n")
			}

			if !submit {
				return nil
			}
			sub, err := sess.Submit(ctx)
			var refused *timelog.SubmissionRefusedError
			if errors.As(err, &refused) {
				keys := make([]string, 0, len(refused.Cells))
				for _, c := range refused.Cells {
					keys = append(keys, c.String())
				}
				printf(cmd, "需修改的单元格: %s\n", strings.Join(keys, ", "))
				return fmt.Errorf("%w: %s", errRefused, refused.Validation.ErrorMessage)
			}
			if err != nil {
				return err
			}
			logger.Debug("提交完成", zap.String("total_hours", timelog.FormatHours(sub.TotalHours)))
			printf(cmd, "已提交 %s，共 %s 小时\n", timelog.FormatWeek(sess.Overview().WeekStart), timelog.FormatHours(sub.TotalHours))
			return nil
		},
	}

	cmd.Flags().StringVar(&allocationID, "allocation", "", "分配ID")
	cmd.Flags().StringVar(&dayName, "day", "", "星期，如 monday、mon")
	cmd.Flags().StringVar(&hours, "hours", "", "工时，如 7.5")
	cmd.Flags().BoolVar(&submit, "submit", false, "保存后提交本周")
	_ = cmd.MarkFlagRequired("allocation")
	_ = cmd.MarkFlagRequired("day")
	_ = cmd.MarkFlagRequired("hours")
	return cmd
}
