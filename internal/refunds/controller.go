package refunds

import (
	"context"
	"net/http"

	"eventreg/internal/shared/apperrors"
	"eventreg/internal/shared/middleware"
	"eventreg/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller interface {
	RequestRefund(c *gin.Context)
	ListRequests(c *gin.Context)
	ApproveRequest(c *gin.Context)
	RejectRequest(c *gin.Context)
	ListRefunds(c *gin.Context)
	ListFailures(c *gin.Context)
	RetryFailure(c *gin.Context)
	ListUnregistered(c *gin.Context)
	RefundUnregistered(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

func (ctrl *controller) RequestRefund(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, apperrors.Wrap(apperrors.CodeInvalidRequest, "Invalid event ID", err))
		return
	}

	var req CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	rr, err := ctrl.service.RequestRefund(c.Request.Context(), eventID, req)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Refund request submitted", rr, nil)
}

func (ctrl *controller) ListRequests(c *gin.Context) {
	var query ListRequestsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	list, err := ctrl.service.ListRequests(c.Request.Context(), query.Status)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Refund requests retrieved successfully", list, nil)
}

func (ctrl *controller) ApproveRequest(c *gin.Context) {
	ctrl.decide(c, ctrl.service.Approve, "Refund request approved")
}

func (ctrl *controller) RejectRequest(c *gin.Context) {
	ctrl.decide(c, ctrl.service.Reject, "Refund request rejected")
}

func (ctrl *controller) decide(c *gin.Context, fn func(ctx context.Context, id uuid.UUID, adminID, notes string) (*RefundRequest, error), message string) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, apperrors.Wrap(apperrors.CodeInvalidRequest, "Invalid refund request ID", err))
		return
	}

	var req DecideRefundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
			return
		}
	}

	rr, err := fn(c.Request.Context(), requestID, c.GetString(middleware.ContextUserID), req.AdminNotes)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, message, rr, nil)
}

func (ctrl *controller) ListRefunds(c *gin.Context) {
	var query ListRefundsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	page, err := ctrl.service.ListRefunds(c.Request.Context(), query)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Refunds retrieved successfully", page, nil)
}

// ListFailures is the reconciliation report: charges that still need a refund
func (ctrl *controller) ListFailures(c *gin.Context) {
	var query ListFailuresQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	list, err := ctrl.service.ListFailures(c.Request.Context(), query.Status)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Reconciliation report retrieved successfully", list, nil)
}

func (ctrl *controller) RetryFailure(c *gin.Context) {
	paymentID := c.Param("paymentId")

	res, err := ctrl.service.RetryFailure(c.Request.Context(), paymentID)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Refund issued", res, nil)
}

// ListUnregistered reports captured payments that back no registration
func (ctrl *controller) ListUnregistered(c *gin.Context) {
	var query ListUnregisteredQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "since must be an RFC 3339 timestamp", nil, err.Error())
		return
	}

	list, err := ctrl.service.ListUnregistered(c.Request.Context(), query.Since)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Unregistered payments retrieved successfully", list, nil)
}

func (ctrl *controller) RefundUnregistered(c *gin.Context) {
	paymentID := c.Param("paymentId")

	res, err := ctrl.service.RefundUnregistered(c.Request.Context(), paymentID, c.GetString(middleware.ContextUserID))
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Refund issued", res, nil)
}
