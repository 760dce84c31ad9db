// Package http 风险引擎的 HTTP 处理器
package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/riskanalytics/internal/risk/application"
	"github.com/wyfcoding/riskanalytics/pkg/logger"
)

// RiskHandler HTTP 处理器
type RiskHandler struct {
	riskService *application.RiskApplicationService
}

// NewRiskHandler 创建 HTTP 处理器
func NewRiskHandler(riskService *application.RiskApplicationService) *RiskHandler {
	return &RiskHandler{
		riskService: riskService,
	}
}

// RegisterRoutes 注册路由
func (h *RiskHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/risk")
	{
		api.POST("/returns", h.IngestReturn)
		api.POST("/positions", h.UpdatePosition)
		api.POST("/greeks", h.UpdateGreeks)
		api.POST("/check", h.Check)
		api.GET("/var", h.PortfolioVaR)
		api.GET("/stress", h.StressReport)
		api.GET("/correlation", h.Correlation)
		api.GET("/positions", h.Positions)
		api.GET("/metrics", h.PerformanceMetrics)
		api.GET("/violations", h.RecentViolations)
	}
}

// IngestReturn 写入收益率样本
func (h *RiskHandler) IngestReturn(c *gin.Context) {
	var req application.IngestReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.riskService.IngestReturn(c.Request.Context(), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// UpdatePosition 更新持仓
func (h *RiskHandler) UpdatePosition(c *gin.Context) {
	var req application.UpdatePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dto, err := h.riskService.UpdatePosition(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto)
}

// UpdateGreeks 更新希腊字母
func (h *RiskHandler) UpdateGreeks(c *gin.Context) {
	var req application.UpdateGreeksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.riskService.UpdateGreeks(c.Request.Context(), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Check 执行风控检查
func (h *RiskHandler) Check(c *gin.Context) {
	dto := h.riskService.CheckTrade(c.Request.Context())
	c.JSON(http.StatusOK, dto)
}

// PortfolioVaR 组合风险视图
func (h *RiskHandler) PortfolioVaR(c *gin.Context) {
	c.JSON(http.StatusOK, h.riskService.PortfolioVaR(c.Request.Context()))
}

// StressReport 压力测试报告
func (h *RiskHandler) StressReport(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"scenarios": h.riskService.StressReport(c.Request.Context()),
	})
}

// Correlation 读取一对标的的相关系数
func (h *RiskHandler) Correlation(c *gin.Context) {
	a, err := strconv.ParseUint(c.Query("a"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol a"})
		return
	}
	b, err := strconv.ParseUint(c.Query("b"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol b"})
		return
	}

	c.JSON(http.StatusOK, h.riskService.Correlation(c.Request.Context(), uint32(a), uint32(b)))
}

// Positions 持仓列表
func (h *RiskHandler) Positions(c *gin.Context) {
	dtos := h.riskService.Positions(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"data":  dtos,
		"total": len(dtos),
	})
}

// PerformanceMetrics 风控检查性能统计
func (h *RiskHandler) PerformanceMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.riskService.PerformanceMetrics(c.Request.Context()))
}

// RecentViolations 最近的违规审计记录
func (h *RiskHandler) RecentViolations(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "100")
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	violations, err := h.riskService.RecentViolations(c.Request.Context(), limit)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to list violations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  violations,
		"total": len(violations),
	})
}
