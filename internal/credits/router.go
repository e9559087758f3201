package credits

import "github.com/gin-gonic/gin"

func SetupCreditRoutes(router *gin.RouterGroup, controller Controller, admin []gin.HandlerFunc) {
	router.GET("/users/:userId/credits", controller.GetBalance) // GET /api/v1/users/:userId/credits

	adminCredits := router.Group("/admin/users")
	adminCredits.Use(admin...)
	{
		adminCredits.POST("/:userId/credits", controller.Grant)
	}
}
