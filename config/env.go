package config

// 支持的环境变量
const (
	EnvStoreBackend = "TOURKIT_STORE_BACKEND"
	EnvRedisAddr    = "TOURKIT_REDIS_ADDR"
	EnvBadgerPath   = "TOURKIT_BADGER_PATH"
	EnvHTTPAddr     = "TOURKIT_HTTP_ADDR"
	EnvRankingModel = "TOURKIT_RANKING_MODEL"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"
	EnvLogCaller    = "LOG_CALLER"
)

// envKeys 把环境变量映射到 koanf 配置路径，未列出的变量一律忽略
var envKeys = map[string]string{
	EnvStoreBackend: "store.backend",
	EnvRedisAddr:    "store.redis.addr",
	EnvBadgerPath:   "store.badger.path",
	EnvHTTPAddr:     "server.addr",
	EnvRankingModel: "ranking.model",
	EnvLogLevel:     "log.level",
	EnvLogFormat:    "log.format",
	EnvLogCaller:    "log.caller",
}

// envTransform 供 env.ProviderWithValue 使用；返回空 key 表示跳过该变量
func envTransform(key, value string) (string, any) {
	path, ok := envKeys[key]
	if !ok || value == "" {
		return "", nil
	}
	return path, value
}
