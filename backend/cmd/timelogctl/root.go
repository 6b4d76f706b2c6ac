package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"resource-planner/backend/config"
	"resource-planner/backend/internal/client"
	"resource-planner/backend/internal/timelog"
	applogger "resource-planner/backend/pkg/logger"
)

// errRefused validate/log --submit 被拒绝时返回，main 据此以退出码 1 结束
var errRefused = errors.New("提交将被拒绝")

// remoteFlags 访问服务端的公共参数，支持 TIMELOG_* 环境变量
type remoteFlags struct {
	Server   string
	Token    string
	Resource string
	Week     string
	Actor    string
	Admin    bool
	Verbose  bool
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TIMELOG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "timelogctl",
		Short: "资源周工时填报命令行工具",
		Long: `timelogctl 用于校验、查看与填报资源的周工时。
validate 离线校验 JSON 周文件；week、log、unsubmit 通过 HTTP 接口访问工时服务。`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("server", "http://localhost:8080", "工时服务地址")
	pf.String("token", "", "Access Token")
	pf.String("resource", "", "资源ID（默认取当前用户）")
	pf.String("week", "", "周一日期 yyyy-MM-dd（默认本周）")
	pf.String("actor", "", "操作者ID（默认与 --resource 相同）")
	pf.Bool("admin", false, "以管理员身份操作")
	pf.BoolP("verbose", "v", false, "输出调试日志")
	_ = v.BindPFlags(pf)

	root.AddCommand(newValidateCmd())
	root.AddCommand(newWeekCmd(v))
	root.AddCommand(newLogCmd(v))
	root.AddCommand(newUnsubmitCmd(v))
	return root
}

func loadRemoteFlags(v *viper.Viper) (remoteFlags, error) {
	f := remoteFlags{
		Server:   v.GetString("server"),
		Token:    v.GetString("token"),
		Resource: v.GetString("resource"),
		Week:     v.GetString("week"),
		Actor:    v.GetString("actor"),
		Admin:    v.GetBool("admin"),
		Verbose:  v.GetBool("verbose"),
	}
	if f.Token == "" {
		return f, errors.New("缺少 --token（或环境变量 TIMELOG_TOKEN）")
	}
	if f.Resource == "" {
		return f, errors.New("缺少 --resource（或环境变量 TIMELOG_RESOURCE）")
	}
	return f, nil
}

// weekStart 解析 --week，未指定时取本周周一
func (f remoteFlags) weekStart(now time.Time) (time.Time, error) {
	if f.Week == "" {
		return timelog.WeekStartOf(now), nil
	}
	return timelog.ParseWeekStart(f.Week)
}

func (f remoteFlags) logger() *zap.Logger {
	if !f.Verbose {
		return zap.NewNop()
	}
	l, err := applogger.NewLogger(&config.LogConfig{Level: "debug", Format: "console"})
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func (f remoteFlags) client(ctx context.Context, logger *zap.Logger) *client.Client {
	return client.New(ctx, client.Options{
		BaseURL: f.Server,
		Token:   f.Token,
		Logger:  logger,
	})
}

// actor 命令行只知道资源ID与是否管理员，权限以服务端为准
func (f remoteFlags) actor() timelog.Actor {
	id := f.Actor
	if id == "" {
		id = f.Resource
	}
	return timelog.Actor{ID: id, Admin: f.Admin}
}

func openSession(ctx context.Context, f remoteFlags, logger *zap.Logger) (*timelog.Session, error) {
	week, err := f.weekStart(time.Now())
	if err != nil {
		return nil, err
	}
	return timelog.OpenSession(ctx, f.client(ctx, logger), f.actor(), f.Resource, week, timelog.LedgerOptions{Logger: logger})
}

func printf(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
