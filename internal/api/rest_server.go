// Package api поднимает служебный REST сервер: состояние симуляции,
// метрики Prometheus и WebSocket-вход для игровых клиентов.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/blockverse/internal/game"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/metrics"
	"github.com/annel0/blockverse/internal/middleware"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// GameState описывает то, что REST API читает из игрового сервера
type GameState interface {
	Stats() game.Stats
	Sessions() []game.SessionInfo
	ChunkInfo(pos vec.Vec3) (game.ChunkInfo, bool)
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Addr     string                 // адрес для запуска сервера
	Game     GameState              // источник состояния симуляции
	Sampler  *metrics.ProcessSampler // может быть nil
	WS       http.HandlerFunc       // обработчик /ws; nil отключает маршрут
	Registry prometheus.Registerer  // nil — дефолтный регистр
	Gatherer prometheus.Gatherer    // nil — дефолтный регистр
}

// RestServer представляет REST API сервер
type RestServer struct {
	router  *gin.Engine
	server  *http.Server
	game    GameState
	sampler *metrics.ProcessSampler
	logger  *logging.Logger
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Addr == "" {
		config.Addr = ":8088"
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	// === Observability middleware ===
	router.Use(otelgin.Middleware("blockverse_api"))
	router.Use(middleware.NewRequestLogger(nil).Handler())

	promMw := middleware.NewPrometheusMiddleware("blockverse_api", config.Registry, "/ws")
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Gatherer)

	rs := &RestServer{
		router:  router,
		game:    config.Game,
		sampler: config.Sampler,
		logger:  logging.GetAPILogger(),
	}
	rs.server = &http.Server{
		Addr:              config.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	rs.setupRoutes(config.WS)
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes(ws http.HandlerFunc) {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	{
		api.GET("/stats", rs.handleStats)
		api.GET("/sessions", rs.handleSessions)
		api.GET("/chunks/:x/:y/:z", rs.handleChunk)
	}

	if ws != nil {
		rs.router.GET("/ws", gin.WrapF(ws))
	}
}

// Handler возвращает http.Handler сервера
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleStats отдаёт сводку симуляции и потребление ресурсов процессом
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := map[string]interface{}{
		"game":        rs.game.Stats(),
		"server_time": time.Now().Unix(),
	}
	if rs.sampler != nil {
		stats["process"] = rs.sampler.Sample()
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    stats,
	})
}

func (rs *RestServer) handleSessions(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список сессий получен",
		Data:    rs.game.Sessions(),
	})
}

// handleChunk отдаёт сведения о загруженном чанке по координатам чанка
func (rs *RestServer) handleChunk(c *gin.Context) {
	var coords [3]int64
	for i, name := range []string{"x", "y", "z"} {
		v, err := strconv.ParseInt(c.Param(name), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, GenericResponse{
				Success: false,
				Message: "Неверная координата " + name,
			})
			return
		}
		coords[i] = v
	}

	info, ok := rs.game.ChunkInfo(vec.Vec3{X: coords[0], Y: coords[1], Z: coords[2]})
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Чанк не загружен",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Чанк найден",
		Data:    info,
	})
}

// Start запускает сервер и блокируется до Stop
func (rs *RestServer) Start() error {
	rs.logger.Info("REST API listening on %s", rs.server.Addr)
	if err := rs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop завершает сервер, дожидаясь активных запросов
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.server.Shutdown(ctx)
}
