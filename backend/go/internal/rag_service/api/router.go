package api

import (
	"Athena/backend/go/pkg/logger"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request through the service logger.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(map[string]interface{}{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request completed")
			return
		}
		entry.Debug("request completed")
	}
}

// NewRouter builds the gin engine serving every route.
func NewRouter(api *API, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))
	RegisterRoutes(router, api)
	return router
}

// RegisterRoutes registers all the routes for the RAG service.
func RegisterRoutes(router *gin.Engine, api *API) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", api.ReadyHandler)

	// All routes will be under /api/v1
	v1 := router.Group("/api/v1")

	documents := v1.Group("/documents")
	{
		documents.POST("", api.UploadDocumentHandler)
		documents.GET("", api.ListDocumentsHandler)
		documents.GET("/:id", api.GetDocumentHandler)
		documents.DELETE("/:id", api.DeleteDocumentHandler)
	}

	v1.POST("/search", api.SearchHandler)
	v1.POST("/chat", api.ChatHandler)

	conversations := v1.Group("/conversations")
	{
		conversations.POST("", api.CreateConversationHandler)
		conversations.GET("", api.ListConversationsHandler)
		conversations.GET("/:id/messages", api.HistoryHandler)
		conversations.DELETE("/:id", api.DeleteConversationHandler)
	}

	quizzes := v1.Group("/quizzes")
	{
		quizzes.POST("", api.GenerateQuizHandler)
		quizzes.GET("", api.ListQuizzesHandler)
		quizzes.GET("/:id", api.GetQuizHandler)
		quizzes.DELETE("/:id", api.DeleteQuizHandler)
	}
}
