package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/knowbase/file-backend/pkg/repository"
)

func (h *Handler) logParams(c *gin.Context) repository.ListOperationLogsParams {
	params := repository.ListOperationLogsParams{
		Page:          queryInt(c, "page", 1),
		PageSize:      queryInt(c, "page_size", repository.DefaultPageSize),
		OperationType: c.Query("operation_type"),
		UserID:        uint(queryInt(c, "user_id", 0)),
		FileID:        uint(queryInt(c, "file_id", 0)),
	}
	if raw := c.Query("since"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			params.Since = &t
		}
	}
	if raw := c.Query("until"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			params.Until = &t
		}
	}
	return params
}

// ListOperationLogs returns a page of the audit trail.
func (h *Handler) ListOperationLogs(c *gin.Context) {
	list, err := h.service.ListOperationLogs(c.Request.Context(), h.logParams(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logs":      list.Entries,
		"total":     list.Total,
		"page":      list.Page,
		"page_size": list.PageSize,
		"pages":     list.Pages,
	})
}

// ExportOperationLogs streams the filtered audit trail as a CSV attachment.
func (h *Handler) ExportOperationLogs(c *gin.Context) {
	filename := fmt.Sprintf("operation_logs_%s.csv", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if err := h.service.ExportOperationLogsCSV(c.Request.Context(), h.logParams(c), c.Writer); err != nil {
		// Headers are already written, all we can do is log and cut the stream.
		h.logger.Error("exporting operation logs", zap.Error(err))
	}
}
