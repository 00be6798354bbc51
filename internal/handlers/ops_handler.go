package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"transaction-recon/internal/config"
	"transaction-recon/internal/lifecycle"
	"transaction-recon/internal/repository"
)

type OpsHandler struct {
	cfg       *config.Config
	ctrl      *lifecycle.Controller
	rescanner *lifecycle.Rescanner
	store     repository.Store
}

func NewOpsHandler(cfg *config.Config, ctrl *lifecycle.Controller, rescanner *lifecycle.Rescanner, store repository.Store) *OpsHandler {
	return &OpsHandler{cfg: cfg, ctrl: ctrl, rescanner: rescanner, store: store}
}

// GetFileProgress reports the processing snapshot for one inbound file,
// identified by the region/system directory it arrived through.
func (h *OpsHandler) GetFileProgress(c *gin.Context) {
	region := c.Param("region")
	system := c.Param("system")
	fileName := c.Param("name")

	prog, ok := h.ctrl.Progress(region, system, fileName)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not seen"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"region":   region,
		"system":   system,
		"file":     fileName,
		"progress": prog,
	})
}

// ListUnmatched returns currently unmatched rows, optionally restricted to
// one source system.
func (h *OpsHandler) ListUnmatched(c *gin.Context) {
	system := c.Query("system")
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	rows, err := h.store.ListUnmatched(system, config.QuoteList(h.cfg.BusinessUnits), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": rows,
		"count": len(rows),
	})
}

// RequeueUnmatched retries the match for one unmatched row immediately
// instead of waiting for the next rescan cycle.
func (h *OpsHandler) RequeueUnmatched(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid row ID"})
		return
	}

	row, err := h.store.GetUnmatched(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "row not found"})
		return
	}

	h.rescanner.RescanRow(row)

	updated, err := h.store.GetUnmatched(id)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"message": "rescan completed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "rescan completed",
		"gpi_status": updated.GPIStatus,
	})
}
