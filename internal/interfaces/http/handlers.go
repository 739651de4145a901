package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MiguelValor/shopify-automator/internal/application/optimizer"
	"github.com/MiguelValor/shopify-automator/internal/application/port"
	"github.com/MiguelValor/shopify-automator/internal/application/service"
	"github.com/MiguelValor/shopify-automator/internal/domain/entity"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	manager   service.ApprovalManager
	optimizer SEOOptimizer
	exporter  port.AuditExporter
	config    ServerConfig
	logger    Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, config ServerConfig, logger Logger) *Handlers {
	return &Handlers{
		manager:   deps.Manager,
		optimizer: deps.Optimizer,
		exporter:  deps.Exporter,
		config:    config,
		logger:    logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Port    int    `json:"port"`
}

// DecisionRequest is the body of approve and reject
type DecisionRequest struct {
	ReviewedBy string `json:"reviewedBy"`
	Notes      string `json:"notes"`
}

// BulkRequest is the body of the bulk endpoints
type BulkRequest struct {
	IDs        []string `json:"ids"`
	ReviewedBy string   `json:"reviewedBy"`
	Notes      string   `json:"notes"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: h.config.ServiceName,
		Port:    h.config.Port,
	})
}

// CreateApproval handles POST /create-approval
func (h *Handlers) CreateApproval(c *gin.Context) {
	var params service.CreateApprovalParams
	if err := c.ShouldBindJSON(&params); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	approval, err := h.manager.CreateApproval(c.Request.Context(), params)
	if err != nil {
		h.fail(c, err, CodeCreationFailed, approval)
		return
	}
	ok(c, approval)
}

// ApproveItem handles POST /approvals/:id/approve
func (h *Handlers) ApproveItem(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	approval, err := h.manager.ApproveItem(c.Request.Context(), c.Param("id"), req.ReviewedBy)
	if err != nil {
		h.fail(c, err, CodeApprovalFailed, approval)
		return
	}
	ok(c, approval)
}

// RejectItem handles POST /approvals/:id/reject
func (h *Handlers) RejectItem(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	approval, err := h.manager.RejectItem(c.Request.Context(), c.Param("id"), req.ReviewedBy, req.Notes)
	if err != nil {
		h.fail(c, err, CodeRejectionFailed, nil)
		return
	}
	ok(c, approval)
}

// GetApproval handles GET /approvals/:id
func (h *Handlers) GetApproval(c *gin.Context) {
	approval, err := h.manager.GetApproval(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, CodeFetchFailed, nil)
		return
	}
	ok(c, approval)
}

// GetPendingApprovals handles GET /approvals/pending/:shopId
func (h *Handlers) GetPendingApprovals(c *gin.Context) {
	approvals, err := h.manager.GetPendingApprovals(c.Request.Context(), c.Param("shopId"))
	if err != nil {
		h.fail(c, err, CodeFetchFailed, nil)
		return
	}
	ok(c, nonNil(approvals))
}

// ListUnapplied handles GET /approvals/unapplied/:shopId
func (h *Handlers) ListUnapplied(c *gin.Context) {
	approvals, err := h.manager.ListUnapplied(c.Request.Context(), c.Param("shopId"))
	if err != nil {
		h.fail(c, err, CodeFetchFailed, nil)
		return
	}
	ok(c, nonNil(approvals))
}

// BulkApprove handles POST /approvals/bulk-approve
func (h *Handlers) BulkApprove(c *gin.Context) {
	var req BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if len(req.IDs) == 0 {
		badRequest(c, "ids is required")
		return
	}

	results, err := h.manager.BulkApprove(c.Request.Context(), req.IDs, req.ReviewedBy)
	if err != nil {
		h.fail(c, err, CodeApprovalFailed, nil)
		return
	}
	ok(c, results)
}

// BulkReject handles POST /approvals/bulk-reject
func (h *Handlers) BulkReject(c *gin.Context) {
	var req BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if len(req.IDs) == 0 {
		badRequest(c, "ids is required")
		return
	}

	n, err := h.manager.BulkReject(c.Request.Context(), req.IDs, req.ReviewedBy, req.Notes)
	if err != nil {
		h.fail(c, err, CodeRejectionFailed, nil)
		return
	}
	ok(c, gin.H{"rejected": n})
}

// ExpireOldApprovals handles POST /approvals/expire
func (h *Handlers) ExpireOldApprovals(c *gin.Context) {
	n, err := h.manager.ExpireOldApprovals(c.Request.Context())
	if err != nil {
		h.fail(c, err, CodeExpiryFailed, nil)
		return
	}
	ok(c, gin.H{"expired": n})
}

// ExportAudit handles GET /approvals/export/:shopId?status=
func (h *Handlers) ExportAudit(c *gin.Context) {
	shopID := c.Param("shopId")
	status := c.Query("status")
	if status != "" && !isStatus(status) {
		badRequest(c, fmt.Sprintf("unknown status %q", status))
		return
	}

	approvals, err := h.manager.ListApprovals(c.Request.Context(), port.ApprovalFilter{ShopID: shopID, Status: status})
	if err != nil {
		h.fail(c, err, CodeFetchFailed, nil)
		return
	}

	var buf bytes.Buffer
	if err := h.exporter.Export(c.Request.Context(), &buf, approvals); err != nil {
		h.fail(c, err, CodeExportFailed, nil)
		return
	}

	filename := fmt.Sprintf("approvals-%s-%s.xlsx", sanitize(shopID), time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// OptimizeSEO handles POST /optimize/seo
func (h *Handlers) OptimizeSEO(c *gin.Context) {
	var req optimizer.SEORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	outcome, err := h.optimizer.OptimizeSEO(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, CodeCreationFailed, nil)
		return
	}
	ok(c, outcome)
}

func nonNil(approvals []*entity.ApprovalRequest) []*entity.ApprovalRequest {
	if approvals == nil {
		return []*entity.ApprovalRequest{}
	}
	return approvals
}

func isStatus(s string) bool {
	switch s {
	case entity.StatusPending, entity.StatusApproved, entity.StatusRejected, entity.StatusExpired:
		return true
	}
	return false
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, s)
}
