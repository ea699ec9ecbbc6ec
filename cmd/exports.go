package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"GuildFM/storage"

	"github.com/spf13/cobra"
)

var (
	exportsTenant string
	exportsDelete string
)

var exportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "管理 MinIO 中导出的歌单",
	Long:  `列出某个租户导出的 M3U 歌单，或删除指定的导出文件。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if !cfg.MinioEnabled() {
			log.Fatal("MINIO_ENDPOINT 未配置")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store, err := storage.NewPlaylistStore(ctx, cfg)
		if err != nil {
			log.Fatalf("无法连接到MinIO: %v", err)
		}

		if exportsDelete != "" {
			if err := store.Remove(ctx, exportsDelete); err != nil {
				log.Fatalf("删除失败: %v", err)
			}
			fmt.Printf("已删除 %s\n", exportsDelete)
			return
		}

		if exportsTenant == "" {
			log.Fatal("需要指定租户 (-t)")
		}
		objects, err := store.List(ctx, exportsTenant)
		if err != nil {
			log.Fatalf("列出文件失败: %v", err)
		}
		if len(objects) == 0 {
			fmt.Println("没有导出的歌单")
			return
		}
		for _, o := range objects {
			fmt.Printf("%s  %8d  %s\n", o.LastModified.Format("2006-01-02 15:04:05"), o.Size, o.Key)
		}
	},
}

func init() {
	rootCmd.AddCommand(exportsCmd)
	exportsCmd.Flags().StringVarP(&exportsTenant, "tenant", "t", "", "租户ID")
	exportsCmd.Flags().StringVarP(&exportsDelete, "delete", "d", "", "删除指定 key 的导出文件")

	exportsCmd.Example = `  # 列出租户的导出
  guildfm exports -t 123456789

  # 删除一个导出
  guildfm exports -d exports/123456789/20250101-120000-1a2b3c4d.m3u`
}
