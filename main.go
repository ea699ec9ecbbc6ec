package main

import "GuildFM/cmd"

func main() {
	// 出错时 cobra 已输出错误并以非零状态退出
	cmd.Execute()
}
