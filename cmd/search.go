package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"GuildFM/core/node"
	"GuildFM/core/utils"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "通过音频节点解析链接或搜索词",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		client := node.NewClient(node.Config{
			WSURL:    cfg.NodeWSURL,
			HTTPURL:  cfg.NodeHTTPURL,
			Password: cfg.NodePassword,
			UserID:   cfg.NodeUserID,
			Shards:   cfg.NodeShards,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		identifier := node.SearchIdentifier(strings.Join(args, " "))
		result, err := client.Resolve(ctx, identifier)
		if err != nil {
			log.Fatalf("解析失败: %v", err)
		}

		fmt.Printf("%s (%d tracks)\n", result.LoadType, len(result.Tracks))
		if result.PlaylistInfo.Name != nil {
			fmt.Printf("歌单: %s\n", *result.PlaylistInfo.Name)
		}
		for i, t := range result.Tracks {
			title, author := "", ""
			if t.Info.Title != nil {
				title = *t.Info.Title
			}
			if t.Info.Author != nil {
				author = *t.Info.Author
			}
			fmt.Printf("%3d. %s - %s [%s] %s\n", i+1, author, title, utils.FormatMillis(t.Info.Length), t.Info.URI)
		}
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
