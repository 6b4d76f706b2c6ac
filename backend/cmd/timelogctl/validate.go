package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"resource-planner/backend/internal/dto"
	"resource-planner/backend/internal/timelog"
)

// weekFile 离线校验使用的周文件，字段与接口一致
//
//	{
//	  "weekStart": "2026-10-12",
//	  "allocations": [{"allocationId": "a1", "projectName": "Apollo", "allocatedHours": "40"}],
//	  "entries": [{"allocationId": "a1", "mondayHours": "8", "tuesdayHours": "7.5"}]
//	}
type weekFile struct {
	WeekStart   string `json:"weekStart"`
	Allocations []struct {
		AllocationID   string `json:"allocationId"`
		ProjectName    string `json:"projectName"`
		AllocatedHours string `json:"allocatedHours"`
	} `json:"allocations"`
	Entries []struct {
		AllocationID string `json:"allocationId"`
		dto.DayHours
	} `json:"entries"`
}

func newValidateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "离线校验周工时文件",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			return runValidate(cmd.OutOrStdout(), r)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "周工时 JSON 文件，- 表示标准输入")
	return cmd
}

// loadWeekFile 解析周文件：工时按存储格式严格校验
func loadWeekFile(r io.Reader) (*timelog.WeekSnapshot, error) {
	var wf weekFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wf); err != nil {
		return nil, fmt.Errorf("解析周文件失败: %w", err)
	}

	week, err := timelog.ParseWeekStart(wf.WeekStart)
	if err != nil {
		return nil, err
	}

	snap := &timelog.WeekSnapshot{WeekStart: week, Entries: make(map[string]timelog.EntrySnapshot)}
	for _, a := range wf.Allocations {
		hours, err := timelog.ParseAllocatedHours(a.AllocatedHours)
		if err != nil {
			return nil, fmt.Errorf("分配 %s 的计划工时无效: %w", a.AllocationID, err)
		}
		snap.Allocations = append(snap.Allocations, timelog.PlannedAllocation{
			AllocationID:   a.AllocationID,
			ProjectName:    a.ProjectName,
			AllocatedHours: hours,
		})
	}
	for _, e := range wf.Entries {
		if e.AllocationID == "" {
			return nil, fmt.Errorf("工时条目缺少 allocationId")
		}
		if _, dup := snap.Entries[e.AllocationID]; dup {
			return nil, fmt.Errorf("分配 %s 出现多条工时", e.AllocationID)
		}
		hours, err := e.WeekHours()
		if err != nil {
			return nil, fmt.Errorf("分配 %s: %w", e.AllocationID, err)
		}
		snap.Entries[e.AllocationID] = timelog.EntrySnapshot{AllocationID: e.AllocationID, Hours: hours}
	}
	return snap, nil
}

// runValidate 打印逐日、提交与分配校验报告；提交会被拒绝时返回 errRefused
func runValidate(w io.Writer, r io.Reader) error {
	snap, err := loadWeekFile(r)
	if err != nil {
		return err
	}

	o := timelog.BuildOverview("", snap.WeekStart, false, snap.Allocations, snap.Hours())
	writeOverview(w, o)

	if !o.Submission.CanSubmit {
		cells := timelog.OffendingCells(snap.Hours(), o.Submission, allocationOrder(snap))
		keys := make([]string, 0, len(cells))
		for _, c := range cells {
			keys = append(keys, c.String())
		}
		fmt.Fprintf(w, "\n需修改的单元格: %s\n", strings.Join(keys, ", "))
		return fmt.Errorf("%w: %s", errRefused, o.Submission.ErrorMessage)
	}
	fmt.Fprintln(w, "\n可以提交")
	return nil
}

// allocationOrder 先按文件中的分配顺序，未列出的分配按 ID 排在后面
func allocationOrder(snap *timelog.WeekSnapshot) []string {
	order := make([]string, 0, len(snap.Allocations)+len(snap.Entries))
	seen := make(map[string]bool, len(snap.Allocations))
	for _, a := range snap.Allocations {
		order = append(order, a.AllocationID)
		seen[a.AllocationID] = true
	}
	for _, id := range snap.Hours().AllocationIDs() {
		if !seen[id] {
			order = append(order, id)
		}
	}
	return order
}

func writeOverview(w io.Writer, o timelog.WeekOverview) {
	fmt.Fprintf(w, "周 %s  状态 %s  合计 %s\n", timelog.FormatWeek(o.WeekStart), o.State, timelog.FormatHours(o.TotalHours))
	fmt.Fprintln(w, "\n每日:")
	for _, d := range o.Daily {
		line := fmt.Sprintf("  %-9s %6s  剩余 %5s", d.Day, timelog.FormatHours(d.TotalHours), timelog.FormatHours(d.RemainingHours))
		if d.Severity != timelog.SeverityNone {
			line += fmt.Sprintf("  [%s] %s", d.Severity, d.WarningMessage)
		}
		fmt.Fprintln(w, line)
	}

	if len(o.Allocations) > 0 {
		fmt.Fprintln(w, "\n分配:")
		for _, a := range o.Allocations {
			fmt.Fprintf(w, "  %-12s %6s / %6s  %s%%  [%s]\n", a.AllocationID,
				timelog.FormatHours(a.WeeklyHours), timelog.FormatHours(a.AllocatedHours),
				a.Percentage.StringFixed(0), a.Status)
		}
	}
}
