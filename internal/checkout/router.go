package checkout

import "github.com/gin-gonic/gin"

func SetupAvailabilityRoutes(router *gin.RouterGroup, controller Controller) {
	availability := router.Group("/events/:id")
	{
		availability.GET("/capacity", controller.GetCapacity)            // GET /api/v1/events/:id/capacity
		availability.GET("/ticket-options", controller.GetTicketOptions) // GET /api/v1/events/:id/ticket-options?audience=&at=
	}
}
