package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/racebot/gorace/internal/domain"
	"github.com/racebot/gorace/internal/history"
	"github.com/racebot/gorace/pkg/sigchan"
)

// FleetStatus 车队状态提供方（由 fleet.Runner 实现）
type FleetStatus interface {
	LastSnapshots() []domain.BotSnapshot
}

type Config struct {
	Listen string
}

// Server 控制面 HTTP 服务：状态查询 + 周期报告查询 + WebSocket 实时推送
type Server struct {
	cfg     Config
	fleet   FleetStatus
	store   *history.Store
	hub     *Hub
	trigger *sigchan.Chan // 手动触发一次巡检周期（由 fleetd 消费）
}

func New(cfg Config, fleet FleetStatus, store *history.Store, trigger *sigchan.Chan) *Server {
	return &Server{
		cfg:     cfg,
		fleet:   fleet,
		store:   store,
		hub:     NewHub(),
		trigger: trigger,
	}
}

// Close 关闭 WebSocket 连接
func (s *Server) Close() error {
	s.hub.Close()
	return nil
}

// BroadcastReport 向所有 WebSocket 订阅者推送周期报告
func (s *Server) BroadcastReport(r *domain.CycleReport) {
	s.hub.Broadcast(r)
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.GET("/fleet/status", s.handleFleetStatus)
	api.GET("/cycles", s.handleCyclesList)
	api.GET("/cycles/:cycleID", s.handleCycleGet)
	api.POST("/cycles/run", s.handleCycleRun)

	r.GET("/ws", s.handleWS)

	return r
}
