package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pricing-intel-api/pkg/services"
)

// MonitoringHandler モニタリングAPIのハンドラ
type MonitoringHandler struct {
	monitoringService *services.MonitoringService
}

// NewMonitoringHandler 新しいモニタリングハンドラを作成
func NewMonitoringHandler(monitoringService *services.MonitoringService) *MonitoringHandler {
	return &MonitoringHandler{
		monitoringService: monitoringService,
	}
}

// GetLogs は直近のリクエストログとステータス別集計を返します。
func (mh *MonitoringHandler) GetLogs(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":         mh.monitoringService.GetRecentLogs(limit),
		"status_codes": mh.monitoringService.CountByStatus(),
	})
}
