package routes

import (
	"shopapi/apperror"
	"shopapi/controllers"
	"shopapi/events"
	"shopapi/middleware"
	"shopapi/token"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type Deps struct {
	Controller  *controllers.Controller
	Tokens      *token.Issuer
	Hub         *events.Hub
	AuthLimiter *middleware.RateLimiter
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		apperror.UseJSONNames(v)
	}
	ctl := d.Controller

	r.Use(middleware.SecurityHeaders(), middleware.ErrorHandler())
	r.GET("/health", controllers.Health)

	requireUser := middleware.AuthMiddleware(d.Tokens)
	requireAdmin := middleware.AdminMiddleware(ctl.Auth)

	auth := r.Group("/auth")
	if d.AuthLimiter != nil {
		auth.Use(d.AuthLimiter.Limit())
	}
	{
		auth.POST("/signup", ctl.Signup)
		auth.POST("/login", ctl.Login)
		auth.POST("/reset-password", ctl.RequestPasswordReset)
		auth.POST("/new-password", ctl.VerifyResetCode)
		auth.POST("/set-password", ctl.SetNewPassword)
		auth.POST("/admin/signup", ctl.AdminSignup)
		auth.POST("/admin/login", ctl.AdminLogin)

		admin := auth.Group("", requireUser, requireAdmin)
		{
			admin.GET("/users", ctl.ListUsers)
			admin.GET("/admin/mail-failures", ctl.MailFailures)
		}
	}

	shop := r.Group("/shop")
	{
		shop.GET("", ctl.GetProducts)
		shop.GET("/product/:id", ctl.GetProductByID)
		shop.GET("/category", ctl.GetCategories)

		user := shop.Group("", requireUser)
		{
			user.PATCH("/cart/:userId", middleware.SelfMiddleware("userId"), ctl.UpdateCart)
			user.POST("/order/:userId", middleware.SelfMiddleware("userId"), ctl.PlaceOrder)
		}

		admin := shop.Group("", requireUser, requireAdmin)
		{
			admin.POST("", ctl.CreateProduct)
			admin.PATCH("/product/:id", ctl.UpdateProduct)
			admin.DELETE("/product/:id", ctl.DeleteProduct)
			admin.POST("/category", ctl.CreateCategory)

			admin.PATCH("/delivery/:orderId", ctl.ConfirmDelivery)
			admin.GET("/orders", ctl.GetOrdersAdmin)
			admin.GET("/orders/reconcile", ctl.Reconcile)
			admin.GET("/orders/export", ctl.ExportOrders)
			admin.GET("/products/export", ctl.ExportProducts)
			admin.GET("/access-token", ctl.AccessToken)
			if d.Hub != nil {
				admin.GET("/orders/ws", events.Handler(d.Hub))
			}
		}
	}
}
