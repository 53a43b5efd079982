package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/xiansir-zhe/cloud-tool/internal/artifact"
	"github.com/xiansir-zhe/cloud-tool/internal/batch"
	"github.com/xiansir-zhe/cloud-tool/internal/core"
	"github.com/xiansir-zhe/cloud-tool/internal/input"
	"github.com/xiansir-zhe/cloud-tool/internal/logging"
)

// maxUploadBytes caps the multipart form held in memory.
const maxUploadBytes = 32 << 20

// NewRouter builds the HTTP routes of the console.
func NewRouter(svc *Service, logger zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.MaxMultipartMemory = maxUploadBytes
	r.Use(logging.GinLogger(logger), recovery(logger))

	h := &httpHandler{service: svc}
	r.GET("/healthz", h.health)

	api := r.Group("/api/v1")
	api.POST("/credentials/extract", h.extractCredentials)
	api.POST("/batch/:operation", h.runBatch)
	api.GET("/runs/:id/artifacts", h.listArtifacts)
	api.GET("/runs/:id/artifacts/:name", h.downloadArtifact)
	return r
}

// NewHTTPServer wraps the router in an http.Server listening on addr.
func NewHTTPServer(addr string, svc *Service, logger zerolog.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(svc, logger),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// ShutdownHTTP stops srv, waiting at most timeout for in-flight runs.
func ShutdownHTTP(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

func recovery(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"ok":    false,
					"error": "internal server error",
				})
			}
		}()
		c.Next()
	}
}

type httpHandler struct {
	service *Service
}

func (h *httpHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type extractRequest struct {
	Text string `json:"text" form:"request_text"`
}

func (h *httpHandler) extractCredentials(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": h.service.ExtractCredentials(req.Text)})
}

func (h *httpHandler) runBatch(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, fmt.Errorf("file: %w", err))
		return
	}
	f, err := file.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	defer f.Close()
	csvData, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	req := BatchRequest{
		Operation:   c.Param("operation"),
		RequestText: c.PostForm("request_text"),
		AccountID:   c.PostForm("account_id"),
		Region:      c.PostForm("region"),
		Secret:      c.PostForm("secret"),
		CSV:         csvData,
		Operator:    "http:" + c.ClientIP(),
	}
	if w := c.PostForm("workers"); w != "" {
		n, err := strconv.Atoi(w)
		if err != nil {
			fail(c, http.StatusBadRequest, fmt.Errorf("workers: %w", err))
			return
		}
		req.Workers = n
	}

	res, err := h.service.RunBatch(c.Request.Context(), req)
	if err != nil {
		if op, perr := core.ParseOperation(req.Operation); perr == nil && errors.Is(err, input.ErrMissingColumn) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"ok":               false,
				"error":            err.Error(),
				"required_columns": input.RequiredColumns(op),
			})
			return
		}
		fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": res})
}

func (h *httpHandler) listArtifacts(c *gin.Context) {
	recs, err := h.service.ListArtifacts(c.Param("id"))
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": recs})
}

func (h *httpHandler) downloadArtifact(c *gin.Context) {
	name := c.Param("name")
	path, err := h.service.ArtifactPath(c.Param("id"), name)
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	c.FileAttachment(path, name)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, batch.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, artifact.ErrNotFound):
		return http.StatusNotFound
	case IsInvalid(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": err.Error()})
}
