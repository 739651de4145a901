package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MiguelValor/shopify-automator/internal/application/optimizer"
	"github.com/MiguelValor/shopify-automator/internal/application/service"
)

// Fallback codes for unclassified failures, per endpoint
const (
	CodeCreationFailed   = "CREATION_FAILED"
	CodeApprovalFailed   = "APPROVAL_FAILED"
	CodeRejectionFailed  = "REJECTION_FAILED"
	CodeFetchFailed      = "FETCH_FAILED"
	CodeExpiryFailed     = "EXPIRY_FAILED"
	CodeExportFailed     = "EXPORT_FAILED"
	CodeGenerationFailed = "GENERATION_FAILED"
	CodeUpdateFailed     = "UPDATE_FAILED"
	CodeInternal         = "INTERNAL_SERVER_ERROR"
)

// Response is the envelope of every JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody describes a failed request
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   &ErrorBody{Code: service.CodeValidation, Message: message},
	})
}

// classify maps an error to a status code and body. details is attached to
// payload and execution failures, where the approval was recorded anyway.
func classify(err error, fallbackCode string, details interface{}) (int, *ErrorBody) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		body := &ErrorBody{Code: svcErr.Code, Message: svcErr.Error()}
		switch svcErr.Kind {
		case service.KindValidation:
			return http.StatusBadRequest, body
		case service.KindNotFound:
			body.Details = gin.H{"approvalId": svcErr.ApprovalID}
			return http.StatusNotFound, body
		case service.KindInvalidState:
			body.Details = gin.H{"approvalId": svcErr.ApprovalID}
			return http.StatusConflict, body
		case service.KindPayload:
			body.Details = details
			return http.StatusUnprocessableEntity, body
		case service.KindExecution:
			body.Details = details
			return http.StatusBadGateway, body
		}
	}

	switch {
	case errors.Is(err, optimizer.ErrGenerationFailed):
		return http.StatusBadGateway, &ErrorBody{Code: CodeGenerationFailed, Message: err.Error()}
	case errors.Is(err, optimizer.ErrApplyFailed):
		return http.StatusBadGateway, &ErrorBody{Code: CodeUpdateFailed, Message: err.Error()}
	}

	return http.StatusInternalServerError, &ErrorBody{Code: fallbackCode, Message: "An unexpected error occurred"}
}

func (h *Handlers) fail(c *gin.Context, err error, fallbackCode string, details interface{}) {
	status, body := classify(err, fallbackCode, details)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "code", body.Code, "error", err)
	}
	c.JSON(status, Response{Success: false, Error: body})
}
