// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/soc-analytics/backend/internal/logging"
	"github.com/soc-analytics/backend/internal/parser"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Datasets DatasetService
	Archive  FileArchive
	Jobs     JobRunner
	Parsers  *parser.Registry
	// Location interprets YYYY-MM-DD range bounds.
	Location          *time.Location
	AllowedExtensions []string
	AllowOrigins      []string
	DefaultListLimit  int
	KeepUploads       bool
	Version           string
	Logger            *zap.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Datasets  DatasetHandler
	Upload    UploadHandler
	Parse     ParseHandler
	Live      LiveHandler
	WebSocket *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health: NewHealthHandler(deps.Version, deps.Datasets),
		Datasets: NewDatasetHandler(deps.Datasets, deps.Archive, DatasetHandlerConfig{
			Location:          deps.Location,
			AllowedExtensions: deps.AllowedExtensions,
			ListLimit:         deps.DefaultListLimit,
			KeepUploads:       deps.KeepUploads,
		}, deps.Logger),
		Upload:    NewUploadHandler(deps.Archive, deps.Jobs, deps.AllowedExtensions, deps.Logger),
		Parse:     NewParseHandler(deps.Parsers),
		Live:      NewLiveHandler(deps.Datasets),
		WebSocket: NewWebSocketHandler(deps.Datasets, deps.Location, deps.AllowOrigins, deps.Logger),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Datasets and filtered views
	datasetGroup := apiGroup.Group("/datasets")
	datasetGroup.GET("", handlers.Datasets.HandleListDatasets)
	datasetGroup.POST("", handlers.Datasets.HandleImportDataset)
	datasetGroup.GET("/:id", handlers.Datasets.HandleGetDataset)
	datasetGroup.DELETE("/:id", handlers.Datasets.HandleDeleteDataset)
	datasetGroup.GET("/:id/filter", handlers.Datasets.HandleFilterDataset)
	datasetGroup.GET("/:id/filter/msgpack", handlers.Datasets.HandleFilterDatasetMsgpack)
	datasetGroup.GET("/:id/kpis", handlers.Datasets.HandleGetKPIs)
	datasetGroup.GET("/:id/sheets/:sheet/rows", handlers.Datasets.HandleGetSheetRows)
	datasetGroup.POST("/:id/keepalive", handlers.Datasets.HandleKeepAlive)

	// Chunked uploads and the upload archive
	fileGroup := apiGroup.Group("/files")
	fileGroup.POST("/upload/chunk", handlers.Upload.HandleUploadChunk)
	fileGroup.POST("/upload/complete", handlers.Upload.HandleCompleteUpload)
	fileGroup.GET("/upload/:id", handlers.Upload.HandleGetUploadJob)
	fileGroup.GET("/recent", handlers.Upload.HandleGetRecentFiles)
	fileGroup.GET("/:id", handlers.Upload.HandleGetFile)
	fileGroup.DELETE("/:id", handlers.Upload.HandleDeleteFile)

	// Parser diagnostics
	apiGroup.GET("/parsers", handlers.Parse.HandleListParsers)
	apiGroup.GET("/parse", handlers.Parse.HandleParseDates)
	apiGroup.POST("/parse", handlers.Parse.HandleParseDates)

	// Live refresh
	apiGroup.POST("/vendors/:vendor/refresh", handlers.Live.HandleRefresh)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws/datasets/:id", handlers.WebSocket.HandleWebSocket)
}

// RegisterMetricsRoute exposes the Prometheus collectors gathered by g.
func RegisterMetricsRoute(e *echo.Echo, path string, g prometheus.Gatherer) {
	e.GET(path, echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}

// MiddlewareConfig configures SetupMiddleware
type MiddlewareConfig struct {
	Logger         *zap.Logger
	RequestLogging bool
	BodyLimit      string
	EnableCORS     bool
	AllowOrigins   []string
	// Verbose exposes the details of unexpected errors to clients.
	Verbose bool
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	logger := logging.OrNop(cfg.Logger)

	e.HTTPErrorHandler = NewErrorHandler(logger, cfg.Verbose)

	if cfg.RequestLogging {
		e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			Skipper:     quietPath,
			LogURI:      true,
			LogMethod:   true,
			LogStatus:   true,
			LogLatency:  true,
			LogRemoteIP: true,
			HandleError: true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				fields := []zap.Field{
					zap.String("method", v.Method),
					zap.String("uri", v.URI),
					zap.Int("status", v.Status),
					zap.Duration("latency", v.Latency),
					zap.String("remote_ip", v.RemoteIP),
				}
				if v.Error != nil {
					logger.Warn("request", append(fields, zap.Error(v.Error))...)
					return nil
				}
				logger.Info("request", fields...)
				return nil
			},
		}))
	}

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 * 1024,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("panic recovered",
				zap.String("path", c.Path()),
				zap.Error(err),
				zap.ByteString("stack", stack))
			return err
		},
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().Header.Get(echo.HeaderAccept) == "text/event-stream" ||
				strings.HasPrefix(c.Request().URL.Path, "/api/ws")
		},
	}))

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if cfg.EnableCORS {
		origins := cfg.AllowOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
}

func quietPath(c echo.Context) bool {
	path := c.Request().URL.Path
	return path == "/api/health" ||
		path == "/metrics" ||
		strings.HasSuffix(path, "/keepalive")
}
