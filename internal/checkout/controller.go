package checkout

import (
	"net/http"
	"time"

	"eventreg/internal/shared/apperrors"
	"eventreg/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller interface {
	GetCapacity(c *gin.Context)
	GetTicketOptions(c *gin.Context)
}

type controller struct {
	service AvailabilityService
}

func NewController(service AvailabilityService) Controller {
	return &controller{service: service}
}

func (ctrl *controller) GetCapacity(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, apperrors.Wrap(apperrors.CodeInvalidRequest, "Invalid event ID", err))
		return
	}

	out, err := ctrl.service.Capacity(c.Request.Context(), eventID)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Capacity retrieved successfully", out, nil)
}

func (ctrl *controller) GetTicketOptions(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, apperrors.Wrap(apperrors.CodeInvalidRequest, "Invalid event ID", err))
		return
	}

	var query TicketOptionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	var at *time.Time
	if query.At != "" {
		t, err := time.Parse(time.RFC3339, query.At)
		if err != nil {
			response.RespondError(c, apperrors.Wrap(apperrors.CodeInvalidRequest, "at must be an RFC 3339 timestamp", err))
			return
		}
		at = &t
	}

	out, err := ctrl.service.TicketOptions(c.Request.Context(), eventID, query.Audience, at)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Ticket options retrieved successfully", out, nil)
}
