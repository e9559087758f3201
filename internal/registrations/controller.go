package registrations

import (
	"net/http"

	"eventreg/internal/shared/apperrors"
	"eventreg/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller interface {
	Register(c *gin.Context)
	Cancel(c *gin.Context)
	GetRegistration(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

func (ctrl *controller) Register(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, apperrors.Wrap(apperrors.CodeInvalidRequest, "Invalid event ID", err))
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	var reg *Registration
	if req.ReservationID != nil {
		reg, err = ctrl.service.Convert(c.Request.Context(), ConvertInput{
			ReservationID: *req.ReservationID,
			UserID:        req.UserID,
			EventID:       eventID,
			PaymentID:     req.PaymentID,
			PaymentEmail:  req.PaymentEmail,
			FinalPrice:    req.FinalPrice,
		})
	} else {
		reg, err = ctrl.service.Register(c.Request.Context(), RegisterInput{
			UserID:       req.UserID,
			EventID:      eventID,
			TierID:       req.TierID,
			SubEventIDs:  req.SubEventIDs,
			CreditsUsed:  req.CreditsUsed,
			FinalPrice:   req.FinalPrice,
			PaymentID:    req.PaymentID,
			PaymentEmail: req.PaymentEmail,
			Audience:     req.Audience,
		})
	}
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Registration confirmed", gin.H{"registration": reg.ToResponse()}, nil)
}

func (ctrl *controller) Cancel(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, apperrors.Wrap(apperrors.CodeInvalidRequest, "Invalid event ID", err))
		return
	}

	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	if err := ctrl.service.Cancel(c.Request.Context(), eventID, req.UserID); err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Registration cancelled", gin.H{"cancelled": true}, nil)
}

func (ctrl *controller) GetRegistration(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, apperrors.Wrap(apperrors.CodeInvalidRequest, "Invalid event ID", err))
		return
	}

	var query UserQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "userId query parameter is required", nil, err.Error())
		return
	}

	reg, err := ctrl.service.Get(c.Request.Context(), eventID, uuid.MustParse(query.UserID))
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Registration retrieved successfully", reg.ToResponse(), nil)
}
