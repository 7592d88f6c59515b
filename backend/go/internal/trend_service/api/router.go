package api

import (
	"time"

	"TrendWatch/backend/go/internal/models"
	"TrendWatch/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one structured line per request.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		info := models.RequestInfo{
			Method:     c.Request.Method,
			Path:       c.FullPath(),
			RemoteAddr: c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			Status:     c.Writer.Status(),
			LatencyMS:  time.Since(start).Milliseconds(),
		}
		if info.Path == "" {
			info.Path = c.Request.URL.Path
		}
		entry := log.WithRequest(info)
		if info.Status >= 500 {
			entry.Error("request served")
			return
		}
		entry.Debug("request served")
	}
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(api *API, log *logger.Logger) *gin.Engine {
	if log == nil {
		log = logger.Discard()
	}
	router := gin.New()
	// 词条是任意文本，"AC/DC" 这类含 %2F 的路径参数需按原始路径匹配后再解码。
	router.UseRawPath = true
	router.UnescapePathValues = true
	router.Use(gin.Recovery(), RequestLogger(log.Component("http")))
	RegisterRoutes(router, api)
	return router
}

// RegisterRoutes registers all the routes for the trend query service.
func RegisterRoutes(router *gin.Engine, api *API) {
	router.GET("/healthz", api.HealthHandler)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/rankings", api.RankingsHandler)
		v1.GET("/rankings/current", api.CurrentHandler)
		v1.GET("/terms/active", api.ActiveTermsHandler)
		v1.GET("/terms/:text", api.TermHandler)
	}
}
