package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/you/bokohub/domain"
)

// CodeScanHandlers runs submitted code through the analyzer
type CodeScanHandlers struct {
	scanSvc domain.CodeScanService
	logger  *zap.Logger
}

// NewCodeScanHandlers creates new code scan handlers
func NewCodeScanHandlers(scanSvc domain.CodeScanService, logger *zap.Logger) *CodeScanHandlers {
	return &CodeScanHandlers{scanSvc: scanSvc, logger: logger}
}

// CodeScanRequest represents a scan request
type CodeScanRequest struct {
	Code string `json:"code"`
}

// Scan returns the vulnerabilities found in the submitted code
func (h *CodeScanHandlers) Scan(c *gin.Context) {
	var req CodeScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No code provided"})
		return
	}

	vulns, err := h.scanSvc.Scan(c.Request.Context(), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoCode):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No code provided"})
		case errors.Is(err, domain.ErrAnalyzerOutput):
			h.logger.Warn("analyzer returned unparseable output", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "Invalid response format from AI model"})
		case errors.Is(err, domain.ErrAnalyzerUnavailable):
			h.logger.Error("analyzer unavailable", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Code analyzer unavailable"})
		default:
			h.logger.Error("code scan failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Code scan failed"})
		}
		return
	}

	if vulns == nil {
		vulns = []domain.Vulnerability{}
	}
	c.JSON(http.StatusOK, gin.H{"vulnerabilities": vulns})
}
