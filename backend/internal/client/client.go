// Package client 通过 HTTP 接口访问工时服务，实现 timelog.Store。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"resource-planner/backend/internal/dto"
	"resource-planner/backend/internal/timelog"
	pkgerrors "resource-planner/backend/pkg/errors"
	applogger "resource-planner/backend/pkg/logger"
)

const apiPrefix = "/api/v1"

// Options 客户端配置
type Options struct {
	BaseURL string // 如 http://localhost:8080
	Token   string // Access Token
	Timeout time.Duration
	// HTTPClient 底层传输，nil 时使用 http.DefaultClient
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client 工时服务 HTTP 客户端
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

var _ timelog.Store = (*Client)(nil)

// New 创建客户端，请求自动携带 Bearer Token
func New(ctx context.Context, opts Options) *Client {
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: opts.Token,
		TokenType:   "Bearer",
	}))
	hc.Timeout = opts.Timeout
	if hc.Timeout <= 0 {
		hc.Timeout = 15 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/") + apiPrefix,
		http:    hc,
		logger:  applogger.OrNop(opts.Logger),
	}
}

// ── 错误 ──

// APIError 服务端返回的业务错误
type APIError struct {
	Status  int
	Code    int
	Message string
	Details string
	// Err 对应的领域错误，供 errors.Is 匹配
	Err error

	data json.RawMessage
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (HTTP %d, code %d)", e.Message, e.Details, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (HTTP %d, code %d)", e.Message, e.Status, e.Code)
}

func (e *APIError) Unwrap() error { return e.Err }

// 业务码与领域错误的对应关系
var codeErrors = map[int]error{
	20001: timelog.ErrInvalidWeekStart,
	20002: timelog.ErrWeekStartNotMon,
	20004: timelog.ErrWeekSubmitted,
	20005: pkgerrors.ErrLockNotAcquired,
	20105: timelog.ErrConflict,
	20106: timelog.ErrConflict,
	20202: timelog.ErrWeekNotSubmitted,
}

// ErrNotFound 资源不存在（404）
var ErrNotFound = errors.New("not found")

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details string          `json:"details"`
}

// do 发送请求并解出 data；非 2xx 返回 *APIError
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("编码请求体失败: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rid := uuid.New().String()
	req.Header.Set("X-Request-ID", rid)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("请求 %s %s 失败: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("解析响应失败 (HTTP %d): %w", resp.StatusCode, err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			Status:  resp.StatusCode,
			Code:    env.Code,
			Message: env.Message,
			Details: env.Details,
			Err:     codeErrors[env.Code],
			data:    env.Data,
		}
		if apiErr.Err == nil {
			switch resp.StatusCode {
			case http.StatusNotFound:
				apiErr.Err = ErrNotFound
			case http.StatusForbidden:
				apiErr.Err = timelog.ErrNotOwner
			}
		}
		c.logger.Debug("请求失败",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", rid),
			zap.Int("status", resp.StatusCode),
			zap.Int("code", env.Code),
		)
		return apiErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("解析响应数据失败: %w", err)
		}
	}
	return nil
}

// ── timelog.Store ──

// LoadWeek 并发读取分配、本周工时与提交记录
func (c *Client) LoadWeek(ctx context.Context, resourceID string, weekStart time.Time) (*timelog.WeekSnapshot, error) {
	week := timelog.FormatWeek(weekStart)
	snap := &timelog.WeekSnapshot{
		ResourceID: resourceID,
		WeekStart:  weekStart,
		Entries:    make(map[string]timelog.EntrySnapshot),
	}

	var (
		allocs  struct{ List []dto.AllocationResponse }
		entries struct{ List []dto.TimeEntryResponse }
		sub     dto.WeeklySubmissionResponse
		hasSub  bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.do(gctx, http.MethodGet, "/resources/"+resourceID+"/allocations", nil, &allocs)
	})
	g.Go(func() error {
		return c.do(gctx, http.MethodGet, "/resources/"+resourceID+"/time-entries/week/"+week, nil, &entries)
	})
	g.Go(func() error {
		err := c.do(gctx, http.MethodGet, "/resources/"+resourceID+"/weekly-submissions/week/"+week, nil, &sub)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		hasSub = err == nil
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("加载 %s 的周数据失败: %w", week, err)
	}

	for _, a := range allocs.List {
		p, err := plannedAllocation(a)
		if err != nil {
			return nil, err
		}
		snap.Allocations = append(snap.Allocations, p)
	}
	for i := range entries.List {
		e, err := entrySnapshot(&entries.List[i])
		if err != nil {
			return nil, err
		}
		snap.Entries[e.AllocationID] = *e
	}
	if hasSub {
		s, err := submissionSnapshot(&sub)
		if err != nil {
			return nil, err
		}
		snap.Submission = s
	}
	return snap, nil
}

// CreateTimeEntry 创建工时条目
func (c *Client) CreateTimeEntry(ctx context.Context, in timelog.EntryWrite) (*timelog.EntrySnapshot, error) {
	req := dto.CreateTimeEntryRequest{
		ResourceID:    in.ResourceID,
		AllocationID:  in.AllocationID,
		WeekStartDate: timelog.FormatWeek(in.WeekStart),
		DayHours:      dto.NewDayHours(in.Hours),
		Notes:         in.Notes,
	}
	var resp dto.TimeEntryResponse
	if err := c.do(ctx, http.MethodPost, "/time-entries", req, &resp); err != nil {
		return nil, err
	}
	return entrySnapshot(&resp)
}

// UpdateTimeEntry 整行更新工时条目；in.Version > 0 时由服务端做冲突检测
func (c *Client) UpdateTimeEntry(ctx context.Context, entryID string, in timelog.EntryWrite) (*timelog.EntrySnapshot, error) {
	notes := in.Notes
	req := dto.UpdateTimeEntryRequest{
		DayHours: dto.NewDayHours(in.Hours),
		Notes:    &notes,
	}
	if in.Version > 0 {
		v := in.Version
		req.Version = &v
	}
	var resp dto.TimeEntryResponse
	if err := c.do(ctx, http.MethodPut, "/time-entries/"+entryID, req, &resp); err != nil {
		return nil, err
	}
	return entrySnapshot(&resp)
}

// SubmitWeek 提交某周；服务端拒绝时返回 *timelog.SubmissionRefusedError
func (c *Client) SubmitWeek(ctx context.Context, resourceID string, weekStart time.Time) (*timelog.SubmissionSnapshot, error) {
	var resp dto.WeeklySubmissionResponse
	err := c.do(ctx, http.MethodPost, "/time-logging/submit/"+resourceID+"/"+timelog.FormatWeek(weekStart), nil, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity {
			return nil, refusedFromAPI(apiErr)
		}
		return nil, err
	}
	return submissionSnapshot(&resp)
}

// UnsubmitWeek 撤回某周提交（管理员）
func (c *Client) UnsubmitWeek(ctx context.Context, resourceID string, weekStart time.Time) (*timelog.SubmissionSnapshot, error) {
	var resp dto.WeeklySubmissionResponse
	err := c.do(ctx, http.MethodPost, "/time-logging/unsubmit/"+resourceID+"/"+timelog.FormatWeek(weekStart), nil, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden {
			apiErr.Err = timelog.ErrAdminRequired
		}
		return nil, err
	}
	return submissionSnapshot(&resp)
}

// GetWeekOverview 读取服务端周视图（timelogctl week 使用）
func (c *Client) GetWeekOverview(ctx context.Context, resourceID string, weekStart time.Time) (*dto.WeekOverviewResponse, error) {
	var resp dto.WeekOverviewResponse
	path := "/resources/" + resourceID + "/time-logging/week/" + timelog.FormatWeek(weekStart)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ── 响应转换 ──

func parseDayHours(d dto.DayHours) (timelog.WeekHours, error) {
	w, err := d.WeekHours()
	if err != nil {
		return w, fmt.Errorf("服务端返回的工时无效: %w", err)
	}
	return w, nil
}

func plannedAllocation(a dto.AllocationResponse) (timelog.PlannedAllocation, error) {
	hours, err := timelog.ParseAllocatedHours(a.AllocatedHours)
	if err != nil {
		return timelog.PlannedAllocation{}, fmt.Errorf("分配 %s 的计划工时无效: %w", a.ID, err)
	}
	p := timelog.PlannedAllocation{
		AllocationID:   a.ID,
		ProjectID:      a.ProjectID,
		AllocatedHours: hours,
		Status:         a.Status,
	}
	if a.Project != nil {
		p.ProjectName = a.Project.Name
	}
	return p, nil
}

func entrySnapshot(r *dto.TimeEntryResponse) (*timelog.EntrySnapshot, error) {
	hours, err := parseDayHours(r.DayHours)
	if err != nil {
		return nil, err
	}
	return &timelog.EntrySnapshot{
		EntryID:      r.ID,
		AllocationID: r.AllocationID,
		Hours:        hours,
		Notes:        r.Notes,
		Version:      r.Version,
	}, nil
}

func submissionSnapshot(r *dto.WeeklySubmissionResponse) (*timelog.SubmissionSnapshot, error) {
	// 周合计可超过单格上限，不走 ParseStoredHours
	total, err := decimal.NewFromString(r.TotalHours)
	if err != nil {
		return nil, fmt.Errorf("周合计工时无效: %w", err)
	}
	s := &timelog.SubmissionSnapshot{IsSubmitted: r.IsSubmitted, TotalHours: total}
	if r.SubmittedAt != nil {
		at, err := time.Parse(time.RFC3339, *r.SubmittedAt)
		if err != nil {
			return nil, fmt.Errorf("提交时间格式无效: %w", err)
		}
		s.SubmittedAt = &at
	}
	return s, nil
}

func refusedFromAPI(e *APIError) error {
	var data dto.SubmissionRefusedResponse
	if len(e.data) > 0 {
		if err := json.Unmarshal(e.data, &data); err != nil {
			return e
		}
	}

	v := timelog.SubmissionValidation{
		CanSubmit:    false,
		ViolatedDays: make([]timelog.Day, 0, len(data.ViolatedDays)),
		ErrorMessage: e.Message,
	}
	for _, name := range data.ViolatedDays {
		d, err := timelog.ParseDay(name)
		if err != nil {
			return e
		}
		v.ViolatedDays = append(v.ViolatedDays, d)
	}
	for name, raw := range data.DailyTotals {
		d, err := timelog.ParseDay(name)
		if err != nil {
			continue
		}
		if total, err := decimal.NewFromString(raw); err == nil {
			v.DailyTotals[d] = total
		}
	}
	return &timelog.SubmissionRefusedError{Validation: v}
}
