package reservations

import (
	"net/http"

	"eventreg/internal/shared/apperrors"
	"eventreg/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller interface {
	Reserve(c *gin.Context)
	GetReservation(c *gin.Context)
	CancelReservation(c *gin.Context)
}

type controller struct {
	store *Store
}

func NewController(store *Store) Controller {
	return &controller{store: store}
}

func (ctrl *controller) Reserve(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, apperrors.Wrap(apperrors.CodeInvalidRequest, "Invalid event ID", err))
		return
	}

	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	res, err := ctrl.store.Reserve(c.Request.Context(), ReserveInput{
		UserID:       req.UserID,
		EventID:      eventID,
		TierID:       req.TierID,
		SubEventIDs:  req.SubEventIDs,
		CreditsUsed:  req.CreditsUsed,
		FinalPrice:   req.FinalPrice,
		PaymentEmail: req.PaymentEmail,
		Audience:     req.Audience,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Seat reserved", ReserveResponse{
		ReservationID: res.ID,
		ExpiresAt:     res.ExpiresAt,
		QuotedPrice:   res.QuotedPrice,
	}, nil)
}

func (ctrl *controller) GetReservation(c *gin.Context) {
	eventID, reservationID, userID, ok := parseReservationParams(c)
	if !ok {
		return
	}

	res, err := ctrl.store.Get(c.Request.Context(), eventID, reservationID, userID)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Reservation retrieved successfully", res.ToResponse(), nil)
}

func (ctrl *controller) CancelReservation(c *gin.Context) {
	eventID, reservationID, userID, ok := parseReservationParams(c)
	if !ok {
		return
	}

	cancelled, err := ctrl.store.Cancel(c.Request.Context(), eventID, reservationID, userID)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Reservation released", gin.H{"cancelled": cancelled}, nil)
}

func parseReservationParams(c *gin.Context) (eventID, reservationID, userID uuid.UUID, ok bool) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, apperrors.Wrap(apperrors.CodeInvalidRequest, "Invalid event ID", err))
		return
	}
	reservationID, err = uuid.Parse(c.Param("reservationId"))
	if err != nil {
		response.RespondError(c, apperrors.Wrap(apperrors.CodeInvalidRequest, "Invalid reservation ID", err))
		return
	}

	var query UserQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "userId query parameter is required", nil, err.Error())
		return
	}
	return eventID, reservationID, uuid.MustParse(query.UserID), true
}
