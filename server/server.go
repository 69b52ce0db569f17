// Package server 是 HTTP 传输层：参数解析、错误码映射、中间件，业务全部委托给 serving。
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rushteam/tourkit/pkg/logging"
	"github.com/rushteam/tourkit/serving"
)

// Config 是 HTTP 服务参数
type Config struct {
	Addr               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	RateLimitPerMinute int // 0 表示不限流
	MaxBodyBytes       int64
	Gatherer           prometheus.Gatherer // nil 时使用 prometheus.DefaultGatherer
}

// Server 把 Orchestrator 暴露为 HTTP 接口
type Server struct {
	cfg     Config
	orch    *serving.Orchestrator
	log     zerolog.Logger
	maxBody int64
	handler http.Handler
}

// New 创建 Server 并装配路由
func New(cfg Config, orch *serving.Orchestrator) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{cfg: cfg, orch: orch, log: logging.Component("http"), maxBody: cfg.MaxBodyBytes}
	s.handler = s.routes()
	return s
}

// Handler 返回根路由
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(accessLog(s.log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if s.cfg.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(s.cfg.RateLimitPerMinute, time.Minute))
		}
		r.Get("/recommend", s.handleRecommend)
		r.Post("/rank", s.handleRank)
		r.Get("/search", s.handleSearch)
		r.Get("/similar", s.handleSimilar)
		r.Post("/admin/reload", s.handleReload)
	})
	return r
}

// Run 监听并服务，ctx 结束时优雅关闭
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info().Msg("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
