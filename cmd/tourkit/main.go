// tourkit 命令行入口：数据清洗、离线训练与在线服务
package main

import (
	"fmt"
	"os"

	"github.com/rushteam/tourkit/cmd/tourkit/commands"
)

// 构建信息，由 -ldflags 注入
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
