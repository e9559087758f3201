package reservations

import "github.com/gin-gonic/gin"

func SetupReservationRoutes(router *gin.RouterGroup, controller Controller) {
	reserve := router.Group("/events/:id/reserve")
	{
		reserve.POST("", controller.Reserve)                            // POST /api/v1/events/:id/reserve
		reserve.GET("/:reservationId", controller.GetReservation)       // ?userId=
		reserve.DELETE("/:reservationId", controller.CancelReservation) // ?userId=, idempotent
	}
}
