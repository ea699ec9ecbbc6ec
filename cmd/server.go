package cmd

import (
	"GuildFM/logger"
	"GuildFM/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 GuildFM 服务",
	Long:  `连接音频节点，启动命令 API、通知频道与 /metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			cfg.ListenAddr = listen
		}
		defer logger.Sync()
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringP("listen", "l", "", "监听地址，覆盖 LISTEN_ADDR")
}
