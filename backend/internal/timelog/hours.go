package timelog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// 固定常量：日上限与单格上限不对外配置
var (
	DailyCap        = decimal.NewFromInt(8)
	SevereThreshold = decimal.NewFromInt(10)
	MaxCellHours    = decimal.NewFromInt(24)
)

// HoursPrecision 工时小数位数
const HoursPrecision = 2

var (
	ErrHoursFormat     = errors.New("工时格式无效")
	ErrHoursOutOfRange = errors.New("工时超出 0-24 范围")
	ErrHoursPrecision  = errors.New("工时最多保留两位小数")
)

// ── 单元格输入模型 ──

// FilterInput 按键过滤：只接受数字与至多一个小数点。
// 出现其他字符时静默拒绝，返回 current 不变。
func FilterInput(current, proposed string) string {
	dots := 0
	for _, r := range proposed {
		switch {
		case r >= '0' && r <= '9':
		case r == '.':
			dots++
			if dots > 1 {
				return current
			}
		default:
			return current
		}
	}
	return proposed
}

// CommitHours 提交（失焦 / Tab / 回车）时规范化输入：
// 空或无法解析 → 0，截断到 [0, 24]，保留两位小数。从不报错。
func CommitHours(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, ".")
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	if s == "" {
		return decimal.Zero
	}

	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return clampHours(v).Round(HoursPrecision)
}

func clampHours(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(MaxCellHours) {
		return MaxCellHours
	}
	return v
}

// FormatHours 序列化为两位小数字符串（7 → "7.00"）
func FormatHours(v decimal.Decimal) string {
	return v.StringFixed(HoursPrecision)
}

// ParseStoredHours 严格解析接口中的工时字段（服务端防御性校验）。
// 与 CommitHours 不同：不做自动修正，格式、范围或精度不符直接报错。
func ParseStoredHours(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrHoursFormat, raw)
	}
	if v.IsNegative() || v.GreaterThan(MaxCellHours) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrHoursOutOfRange, raw)
	}
	if !v.Equal(v.Round(HoursPrecision)) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrHoursPrecision, raw)
	}
	return v.Round(HoursPrecision), nil
}

// ParseAllocatedHours 解析分配的计划工时：非负，不受单格上限约束
func ParseAllocatedHours(raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrHoursFormat, raw)
	}
	if v.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrHoursOutOfRange, raw)
	}
	return v, nil
}

// CellChange 单元格提交后发出的变更事件
type CellChange struct {
	AllocationID string
	Day          Day
	OldValue     decimal.Decimal
	NewValue     decimal.Decimal
}

// HourCell 单个 (分配, 星期) 单元格的输入值模型
type HourCell struct {
	allocationID string
	day          Day
	committed    decimal.Decimal
	draft        string
	disabled     bool
	onChange     func(CellChange) error
}

// NewHourCell 创建单元格；onChange 在提交值发生变化时被调用，可为 nil。
// onChange 返回错误时单元格回退到原值。
func NewHourCell(allocationID string, day Day, committed decimal.Decimal, onChange func(CellChange) error) *HourCell {
	return &HourCell{
		allocationID: allocationID,
		day:          day,
		committed:    committed,
		draft:        FormatHours(committed),
		onChange:     onChange,
	}
}

// Type 处理一次输入；非法字符被静默丢弃。禁用状态下输入无效。
func (c *HourCell) Type(proposed string) string {
	if c.disabled {
		return c.draft
	}
	c.draft = FilterInput(c.draft, proposed)
	return c.draft
}

// Commit 规范化草稿值并在值变化时发出变更事件
func (c *HourCell) Commit() (CellChange, bool) {
	if c.disabled {
		c.draft = FormatHours(c.committed)
		return CellChange{}, false
	}

	next := CommitHours(c.draft)
	c.draft = FormatHours(next)
	if next.Equal(c.committed) {
		return CellChange{}, false
	}

	change := CellChange{
		AllocationID: c.allocationID,
		Day:          c.day,
		OldValue:     c.committed,
		NewValue:     next,
	}
	if c.onChange != nil {
		if err := c.onChange(change); err != nil {
			c.draft = FormatHours(c.committed)
			return CellChange{}, false
		}
	}
	c.committed = next
	return change, true
}

// Draft 当前输入框中的文本
func (c *HourCell) Draft() string { return c.draft }

// Value 已提交的值
func (c *HourCell) Value() decimal.Decimal { return c.committed }

// Key 单元格键
func (c *HourCell) Key() CellKey { return CellKey{AllocationID: c.allocationID, Day: c.day} }

// SetDisabled 周已提交时禁用输入
func (c *HourCell) SetDisabled(disabled bool) { c.disabled = disabled }

// Disabled 是否禁用
func (c *HourCell) Disabled() bool { return c.disabled }
