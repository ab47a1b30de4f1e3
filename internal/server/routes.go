package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/KramerO/ollama-flow-sub002/internal/workflow"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const maxListLimit = 200

type submitRequest struct {
	Query string `json:"query" binding:"required"`
}

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, coord Coordinator, reader workflow.Reader, log *zap.Logger) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.GET("/pools", handlePools(coord))
	api.POST("/workflows", handleSubmit(coord, log))
	api.GET("/workflows", handleList(reader))
	api.GET("/workflows/:id", handleGet(reader))
}

func handlePools(coord Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, coord.PoolStatus())
	}
}

// handleSubmit runs the workflow inline and answers with its terminal record.
// A failed workflow is still a successful request.
func handleSubmit(coord Coordinator, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
			return
		}
		rec := coord.ProcessWorkflow(c.Request.Context(), req.Query)
		log.Info("workflow submitted via api",
			zap.String("workflow_id", rec.ID),
			zap.String("status", string(rec.Status)))
		c.JSON(http.StatusOK, rec)
	}
}

func handleList(reader workflow.Reader) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
				return
			}
			limit = min(n, maxListLimit)
		}
		recs, err := reader.List(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, recs)
	}
}

func handleGet(reader workflow.Reader) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := reader.Get(c.Request.Context(), c.Param("id"))
		switch {
		case errors.Is(err, workflow.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
		case err != nil:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusOK, rec)
		}
	}
}
