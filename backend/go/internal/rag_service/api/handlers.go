package api

import (
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"Athena/backend/go/internal/rag_service/rag/schema"
	"Athena/backend/go/internal/rag_service/service"
	"Athena/backend/go/pkg/logger"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// API provides the HTTP handlers of the study assistant.
type API struct {
	service        *service.Service
	logger         *logger.Logger
	maxUploadBytes int64
}

// NewAPI creates a new API handler. Uploads larger than maxUploadBytes are
// rejected by the ingestion pipeline; the handler reads at most one byte more.
func NewAPI(svc *service.Service, maxUploadBytes int64, log *logger.Logger) *API {
	return &API{service: svc, logger: log, maxUploadBytes: maxUploadBytes}
}

// fail writes err as {"error": reason, "message": text}.
func (a *API) fail(c *gin.Context, err error) {
	status := ragerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		a.logger.WithErr(err).With("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, gin.H{"error": ragerr.Reason(err), "message": err.Error()})
}

func (a *API) badRequest(c *gin.Context, err error) {
	a.fail(c, fmt.Errorf("%w: %v", ragerr.ErrInvalidInput, err))
}

// UploadDocumentHandler ingests a multipart upload.
func (a *API) UploadDocumentHandler(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		a.badRequest(c, fmt.Errorf("file is required: %v", err))
		return
	}
	f, err := header.Open()
	if err != nil {
		a.badRequest(c, err)
		return
	}
	defer f.Close()

	var r io.Reader = f
	if a.maxUploadBytes > 0 {
		r = io.LimitReader(f, a.maxUploadBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		a.badRequest(c, err)
		return
	}

	result, err := a.service.Ingest(c.Request.Context(), schema.IngestRequest{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Subject:     c.PostForm("subject"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (a *API) ListDocumentsHandler(c *gin.Context) {
	docs, err := a.service.ListDocuments(c.Request.Context(), c.Query("subject"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (a *API) GetDocumentHandler(c *gin.Context) {
	doc, err := a.service.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (a *API) DeleteDocumentHandler(c *gin.Context) {
	if err := a.service.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type searchRequest struct {
	Query    string `json:"query"`
	Category string `json:"category"`
	TopK     int    `json:"topK"`
}

// SearchHandler runs a similarity query over the indexed chunks.
func (a *API) SearchHandler(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, err)
		return
	}
	chunks, err := a.service.Search(c.Request.Context(), req.Query, req.Category, req.TopK)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": chunks})
}

// ChatHandler answers one user turn.
func (a *API) ChatHandler(c *gin.Context) {
	var req schema.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, err)
		return
	}
	resp, err := a.service.Chat(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) CreateConversationHandler(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			a.badRequest(c, err)
			return
		}
	}
	conv, err := a.service.CreateConversation(c.Request.Context(), req.Title)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (a *API) ListConversationsHandler(c *gin.Context) {
	convs, err := a.service.ListConversations(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

func (a *API) HistoryHandler(c *gin.Context) {
	msgs, err := a.service.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (a *API) DeleteConversationHandler(c *gin.Context) {
	if err := a.service.DeleteConversation(c.Request.Context(), c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type quizRequest struct {
	DocumentIDs []string `json:"documentIds"`
	Title       string   `json:"title"`
}

// GenerateQuizHandler creates a ten-question quiz from the given documents.
func (a *API) GenerateQuizHandler(c *gin.Context) {
	var req quizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, err)
		return
	}
	if len(req.DocumentIDs) == 0 {
		a.badRequest(c, fmt.Errorf("documentIds is required"))
		return
	}
	result, err := a.service.GenerateQuiz(c.Request.Context(), req.DocumentIDs, req.Title)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (a *API) ListQuizzesHandler(c *gin.Context) {
	quizzes, err := a.service.ListQuizzes(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, quizzes)
}

func (a *API) GetQuizHandler(c *gin.Context) {
	quiz, err := a.service.GetQuiz(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, quiz)
}

func (a *API) DeleteQuizHandler(c *gin.Context) {
	if err := a.service.DeleteQuiz(c.Request.Context(), c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReadyHandler reports 503 when any configured backend fails its health check.
func (a *API) ReadyHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checked, failed := a.service.Ready(ctx)
	checks := make(map[string]string, len(checked))
	for _, name := range checked {
		checks[name] = "ok"
		if err, ok := failed[name]; ok {
			checks[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
}
