// Package timelog 实现周工时填报的校验与对账引擎。
//
// 包内的校验函数都是纯函数：输入显式传入，不缓存任何中间结果，
// 每次单元格变化后由调用方重新计算。待保存变更（Ledger）、
// 周提交状态机（state.go）与会话编排（Session）建立在这些纯函数之上。
package timelog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WeekLayout 周标识格式：ISO 周的周一，yyyy-MM-dd
const WeekLayout = "2006-01-02"

var (
	ErrInvalidWeekStart = errors.New("周起始日期格式无效，应为 yyyy-MM-dd")
	ErrWeekStartNotMon  = errors.New("周起始日期必须是周一")
	ErrInvalidDay       = errors.New("无效的星期")
)

// Day 一周中的某天，周一为 0
type Day int

const (
	Monday Day = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// DaysPerWeek 一周天数
const DaysPerWeek = 7

// AllDays 按周一到周日排列
var AllDays = [DaysPerWeek]Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var dayNames = [DaysPerWeek]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// String 返回英文星期名（Monday）
func (d Day) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Day(%d)", int(d))
	}
	return dayNames[d]
}

// Key 小写星期名（monday），用于单元格键
func (d Day) Key() string {
	return strings.ToLower(d.String())
}

// Field 对外接口中的字段名（mondayHours）
func (d Day) Field() string {
	return d.Key() + "Hours"
}

// Valid 是否为合法星期
func (d Day) Valid() bool {
	return d >= Monday && d <= Sunday
}

// ParseDay 解析星期，支持 monday / Monday / mondayHours / mon
func ParseDay(s string) (Day, error) {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.TrimSuffix(k, "hours")
	for _, d := range AllDays {
		name := d.Key()
		if k == name || (len(k) == 3 && strings.HasPrefix(name, k)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDay, s)
}

// ── 周起始日期 ──

// ParseWeekStart 解析周标识，并要求为周一
func ParseWeekStart(s string) (time.Time, error) {
	t, err := time.Parse(WeekLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidWeekStart, s)
	}
	if t.Weekday() != time.Monday {
		return time.Time{}, fmt.Errorf("%w: %s 是 %s", ErrWeekStartNotMon, s, t.Weekday())
	}
	return t, nil
}

// WeekStartOf 返回 t 所在 ISO 周的周一（UTC 零点）
func WeekStartOf(t time.Time) time.Time {
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7 // 周日按 ISO 视为第 7 天
	}
	monday := t.AddDate(0, 0, -(wd - 1))
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatWeek 格式化为周标识
func FormatWeek(t time.Time) string {
	return t.Format(WeekLayout)
}

// ── 工时数据 ──

// WeekHours 一条分配在一周七天的工时
type WeekHours [DaysPerWeek]decimal.Decimal

// Total 七天合计
func (w WeekHours) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, h := range w {
		sum = sum.Add(h)
	}
	return sum
}

// IsZero 七天是否全为 0
func (w WeekHours) IsZero() bool {
	for _, h := range w {
		if !h.IsZero() {
			return false
		}
	}
	return true
}

// Equal 逐天比较（按数值，7 与 7.00 相等）
func (w WeekHours) Equal(o WeekHours) bool {
	for i := range w {
		if !w[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// Entries 某资源某周的全部工时，按分配 ID 索引
type Entries map[string]WeekHours

// Clone 深拷贝（WeekHours 是值类型，拷贝 map 即可）
func (e Entries) Clone() Entries {
	out := make(Entries, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// HasHours 是否存在任意非零工时
func (e Entries) HasHours() bool {
	for _, w := range e {
		if !w.IsZero() {
			return true
		}
	}
	return false
}

// Total 整周合计
func (e Entries) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, w := range e {
		sum = sum.Add(w.Total())
	}
	return sum
}

// AllocationIDs 排序后的分配 ID，保证输出顺序稳定
func (e Entries) AllocationIDs() []string {
	ids := make([]string, 0, len(e))
	for id := range e {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PlannedAllocation 资源在某项目上的计划分配（进度计算的分母，只读）
type PlannedAllocation struct {
	AllocationID   string
	ProjectID      string
	ProjectName    string
	AllocatedHours decimal.Decimal
	Status         string // active | planned | completed
}
