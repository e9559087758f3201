package refunds

import "github.com/gin-gonic/gin"

func SetupRefundRoutes(router *gin.RouterGroup, controller Controller, admin []gin.HandlerFunc) {
	router.POST("/events/:id/refund-request", controller.RequestRefund) // POST /api/v1/events/:id/refund-request

	adminRefunds := router.Group("/admin")
	adminRefunds.Use(admin...)
	{
		adminRefunds.GET("/refund-requests", controller.ListRequests)                // ?status=PENDING|APPROVED|REJECTED
		adminRefunds.POST("/refund-requests/:id/approve", controller.ApproveRequest) // refund, cancel registration
		adminRefunds.POST("/refund-requests/:id/reject", controller.RejectRequest)

		adminRefunds.GET("/refunds", controller.ListRefunds)
		adminRefunds.GET("/reconciliation", controller.ListFailures)                   // ?status=PENDING|RESOLVED|ABANDONED
		adminRefunds.POST("/reconciliation/:paymentId/retry", controller.RetryFailure) // force a compensation retry

		adminRefunds.GET("/reconciliation/unregistered", controller.ListUnregistered) // ?since=RFC3339
		adminRefunds.POST("/reconciliation/unregistered/:paymentId/refund", controller.RefundUnregistered)
	}
}
