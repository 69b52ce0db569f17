package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rushteam/tourkit/config"
	"github.com/rushteam/tourkit/pkg/logging"
)

var (
	configPath string
	envFile    string
)

// NewRootCmd 创建根命令并挂载全部子命令
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tourkit",
		Short: "Hybrid tour recommendation engine",
		Long: `tourkit builds model snapshots from tour catalogs and reviews,
and serves recommendations, ranking, search and similar-tour lookups over HTTP.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before config")

	cmd.AddCommand(NewIngestCmd())
	cmd.AddCommand(NewTrainCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewSnapshotsCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewVersionCmd())
	return cmd
}

// Execute 运行根命令
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig 依次加载 dotenv、YAML 配置并初始化日志
func loadConfig() (config.Config, error) {
	if envFile != "" {
		// 文件不存在时忽略
		_ = godotenv.Load(envFile)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	logging.Init(cfg.Log)
	return cfg, nil
}
