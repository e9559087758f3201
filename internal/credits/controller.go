package credits

import (
	"net/http"

	"eventreg/internal/shared/apperrors"
	"eventreg/internal/shared/middleware"
	"eventreg/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller interface {
	GetBalance(c *gin.Context)
	Grant(c *gin.Context)
}

type controller struct {
	service *Service
}

func NewController(service *Service) Controller {
	return &controller{service: service}
}

func (ctrl *controller) GetBalance(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.RespondError(c, apperrors.Wrap(apperrors.CodeInvalidRequest, "Invalid user ID", err))
		return
	}

	var query StatementQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	statement, err := ctrl.service.Statement(c.Request.Context(), userID, query.Limit)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Credit balance retrieved successfully", statement, nil)
}

func (ctrl *controller) Grant(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.RespondError(c, apperrors.Wrap(apperrors.CodeInvalidRequest, "Invalid user ID", err))
		return
	}

	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	txn, err := ctrl.service.Grant(c.Request.Context(), userID, req, c.GetString(middleware.ContextUserID))
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Credits granted", txn, nil)
}
