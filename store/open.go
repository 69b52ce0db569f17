package store

import (
	"context"
	"fmt"

	"github.com/rushteam/tourkit/config"
	"github.com/rushteam/tourkit/core"
)

// Open 按配置打开快照存储后端
func Open(ctx context.Context, cfg config.StoreConfig) (core.HashStore, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	case "badger", "":
		dir := cfg.Badger.Path
		if cfg.Badger.InMemory {
			dir = ""
		}
		return OpenBadgerStore(dir)
	default:
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeNotSupported, fmt.Sprintf("store: unknown backend %q", cfg.Backend))
	}
}
