package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"GuildFM/cache"
	"GuildFM/core/utils"

	"github.com/spf13/cobra"
)

var queueTenant string

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "查看 Redis 中的队列镜像",
	Long:  `读取服务写入 Redis 的队列镜像。不指定租户时列出所有有镜像的租户。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if !cfg.RedisEnabled() {
			log.Fatal("REDIS_HOST 未配置")
		}
		if err := cache.ConnectRedis(cfg); err != nil {
			log.Fatalf("无法连接到Redis: %v", err)
		}
		defer cache.CloseRedis()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		qc := cache.NewQueueCache(nil)

		if queueTenant == "" {
			tenants, err := qc.Tenants(ctx)
			if err != nil {
				log.Fatalf("列出租户失败: %v", err)
			}
			if len(tenants) == 0 {
				fmt.Println("没有队列镜像")
				return
			}
			for _, t := range tenants {
				fmt.Println(t)
			}
			return
		}

		state, err := qc.Load(ctx, queueTenant)
		if err != nil {
			log.Fatalf("读取队列失败: %v", err)
		}
		if state == nil {
			fmt.Printf("租户 %s 没有队列镜像\n", queueTenant)
			return
		}

		fmt.Printf("租户: %s  循环模式: %s  曲目数: %d  更新时间: %s\n",
			state.TenantID, state.LoopMode, len(state.Tracks),
			time.UnixMilli(state.UpdatedAt).Format(time.RFC3339))
		for i, t := range state.Tracks {
			fmt.Printf("%3d. %s - %s [%s]\n", i+1, t.DisplayAuthor(), t.DisplayTitle(), utils.FormatMillis(t.LengthMs()))
		}
	},
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.Flags().StringVarP(&queueTenant, "tenant", "t", "", "租户ID")

	queueCmd.Example = `  # 列出所有有镜像的租户
  guildfm queue

  # 查看某个租户的队列
  guildfm queue -t 123456789`
}
