package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"resource-planner/backend/internal/timelog"
)

func newUnsubmitCmd(v *viper.Viper) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "unsubmit",
		Short: "撤回某周的提交（管理员）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadRemoteFlags(v)
			if err != nil {
				return err
			}
			// 撤回只对管理员开放，本地先按管理员建会话，最终由服务端鉴权
			f.Admin = true

			ctx := cmd.Context()
			logger := f.logger()
			defer logger.Sync()

			sess, err := openSession(ctx, f, logger)
			if err != nil {
				return err
			}
			defer sess.Ledger().Close()

			if _, err := sess.Reopen(ctx, func(string) bool { return yes }); err != nil {
				if errors.Is(err, timelog.ErrReopenCancelled) {
					printf(cmd, "撤回他人的提交需要加 --yes 确认\n")
				}
				return err
			}
			printf(cmd, "已撤回 %s 的提交\n", timelog.FormatWeek(sess.Overview().WeekStart))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "确认撤回他人的提交")
	return cmd
}
