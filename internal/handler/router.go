package handler

import (
	"salonsystem/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 会员相关
		members := api.Group("/members")
		{
			members.POST("", h.CreateMember)
			members.GET("", h.ListMembers)
			members.GET("/:id", h.GetMember)
			members.PUT("/:id", h.UpdateMember)
			members.POST("/:id/recharge", h.Recharge)
			members.POST("/:id/consume", h.Consume)
			members.GET("/:id/stats", h.GetMemberStats)
			members.GET("/:id/transactions", h.ListTransactions)
		}

		// 订单相关
		orders := api.Group("/orders")
		{
			orders.POST("", h.CreateOrder)
			orders.GET("", h.ListOrders)
			orders.POST("/preview", h.PreviewOrder)
			orders.GET("/:id", h.GetOrder)
			orders.POST("/:id/pay", h.PayOrder)
		}

		// 预约相关
		appointments := api.Group("/appointments")
		{
			appointments.POST("", h.CreateAppointment)
			appointments.GET("", h.ListAppointments)
			appointments.GET("/:id", h.GetAppointment)
			appointments.PUT("/:id/status", h.UpdateAppointmentStatus)
		}

		// 服务项目相关
		services := api.Group("/services")
		{
			services.POST("", h.CreateService)
			services.GET("", h.ListServices)
			services.GET("/:id", h.GetService)
			services.PUT("/:id", h.UpdateService)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
