package registrations

import "github.com/gin-gonic/gin"

func SetupRegistrationRoutes(router *gin.RouterGroup, controller Controller) {
	registration := router.Group("/events/:id")
	{
		registration.POST("/register", controller.Register)           // direct, or convert with reservation_id
		registration.DELETE("/register", controller.Cancel)           // frees the seat, no refund
		registration.GET("/registration", controller.GetRegistration) // ?userId=
	}
}
