package snapshot

import (
	"context"
	"sync"
	"sync/atomic"
)

// Loader 产出一个新快照
type Loader func(ctx context.Context) (*Snapshot, error)

// Holder 持有当前快照，请求通过 Current 读取，Reload 原子替换。
// 正在处理的请求继续使用它拿到的旧快照。
type Holder struct {
	cur atomic.Pointer[Snapshot]
	mu  sync.Mutex
}

// NewHolder 创建 Holder，s 可以为 nil
func NewHolder(s *Snapshot) *Holder {
	h := &Holder{}
	if s != nil {
		h.cur.Store(s)
	}
	return h
}

// Current 返回当前快照，未加载时为 nil
func (h *Holder) Current() *Snapshot {
	return h.cur.Load()
}

// Reload 通过 load 加载新快照；失败时保留旧快照并返回错误。并发调用串行执行。
func (h *Holder) Reload(ctx context.Context, load Loader) (*Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if err := next.Check(); err != nil {
		return nil, err
	}
	h.cur.Store(next)
	return next, nil
}
