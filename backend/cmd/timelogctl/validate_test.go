package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okWeek = `{
  "weekStart": "2026-10-12",
  "allocations": [
    {"allocationId": "a1", "projectName": "Apollo", "allocatedHours": "40"},
    {"allocationId": "a2", "projectName": "Gemini", "allocatedHours": "10"}
  ],
  "entries": [
    {"allocationId": "a1", "mondayHours": "6", "tuesdayHours": "8", "wednesdayHours": "8", "thursdayHours": "8", "fridayHours": "8"},
    {"allocationId": "a2", "mondayHours": "2"}
  ]
}`

func TestRunValidate_CanSubmit(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runValidate(&out, strings.NewReader(okWeek)), "期望可以提交")

	got := out.String()
	for _, want := range []string{"周 2026-10-12", "合计 40.00", "可以提交", "a1"} {
		assert.Contains(t, got, want)
	}
}

func TestRunValidate_Refused(t *testing.T) {
	week := `{
  "weekStart": "2026-10-12",
  "allocations": [{"allocationId": "a1", "allocatedHours": "40"}],
  "entries": [
    {"allocationId": "a1", "mondayHours": "8", "wednesdayHours": "6"},
    {"allocationId": "b9", "wednesdayHours": "4.5"}
  ]
}`
	var out bytes.Buffer
	err := runValidate(&out, strings.NewReader(week))
	require.ErrorIs(t, err, errRefused)
	assert.Contains(t, err.Error(), "Wednesday", "错误信息应包含违规日期")

	got := out.String()
	assert.Contains(t, got, "a1-wednesday, b9-wednesday", "应按分配顺序列出需修改的单元格")
	assert.Contains(t, got, "[severe]", "10.5h 应标记为 severe")
}

func TestLoadWeekFile_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"非周一", `{"weekStart": "2026-10-13"}`},
		{"日期格式错误", `{"weekStart": "10/12/2026"}`},
		{"工时超过单格上限", `{"weekStart": "2026-10-12", "entries": [{"allocationId": "a1", "mondayHours": "25"}]}`},
		{"精度超过两位", `{"weekStart": "2026-10-12", "entries": [{"allocationId": "a1", "mondayHours": "1.234"}]}`},
		{"缺少分配ID", `{"weekStart": "2026-10-12", "entries": [{"mondayHours": "1"}]}`},
		{"重复分配", `{"weekStart": "2026-10-12", "entries": [{"allocationId": "a1"}, {"allocationId": "a1"}]}`},
		{"负计划工时", `{"weekStart": "2026-10-12", "allocations": [{"allocationId": "a1", "allocatedHours": "-1"}]}`},
		{"未知字段", `{"weekStart": "2026-10-12", "extra": true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadWeekFile(strings.NewReader(tt.in))
			assert.Error(t, err, tt.in)
		})
	}
}

func TestValidateCmd_Stdin(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader(okWeek))
	root.SetArgs([]string{"validate", "--file", "-"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "可以提交")
}

func TestRemoteCmd_RequiresToken(t *testing.T) {
	t.Setenv("TIMELOG_TOKEN", "")
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"week", "--resource", "r1"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--token")
}
