package cmd

import (
	"fmt"
	"log"

	"GuildFM/core/auth"

	"github.com/spf13/cobra"
)

var (
	tokenUser    string
	tokenTenants []string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "签发命令 API 访问令牌",
	Long:  `使用 JWT_SECRET 签发 HS256 令牌。不指定租户时令牌可操作所有租户。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
		if err != nil {
			log.Fatalf("创建签发器失败: %v", err)
		}
		token, err := issuer.GenerateToken(tokenUser, tokenTenants)
		if err != nil {
			log.Fatalf("签发令牌失败: %v", err)
		}
		fmt.Println(token)
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVarP(&tokenUser, "user", "u", "admin", "令牌用户名")
	tokenCmd.Flags().StringSliceVarP(&tokenTenants, "tenant", "t", nil, "允许操作的租户，可重复")
}
