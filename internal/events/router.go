package events

import "github.com/gin-gonic/gin"

func SetupEventRoutes(router *gin.RouterGroup, controller Controller, admin []gin.HandlerFunc) {
	publicEvents := router.Group("/events")
	{
		publicEvents.GET("", controller.ListEvents)   // GET /api/v1/events
		publicEvents.GET("/:id", controller.GetEvent) // GET /api/v1/events/:id - event with tiers and sub-events
	}

	adminEvents := router.Group("/admin/events")
	adminEvents.Use(admin...)
	{
		adminEvents.POST("", controller.CreateEvent) // POST /api/v1/admin/events - event with tiers and sub-events
	}
}
