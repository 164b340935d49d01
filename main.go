package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/gateway"
	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/notify"
)

func main() {
	config.Load()

	client, err := database.Connect(config.AppEnv.MongoURI)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(config.AppEnv.DBName)

	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureOrderIndexes(db); err != nil {
		log.Printf("order index warning: %v", err)
	}
	if err := database.EnsureCouponIndexes(db); err != nil {
		log.Printf("coupon index warning: %v", err)
	}
	if err := database.EnsureUserIndexes(db); err != nil {
		log.Printf("user index warning: %v", err)
	}

	gateways := handlers.PaymentGateways{
		Razorpay: gateway.NewRazorpay(
			config.AppEnv.RazorpayKeyID,
			config.AppEnv.RazorpayKeySecret,
			config.AppEnv.GatewayTimeout,
		),
		PhonePe: gateway.NewPhonePe(
			config.AppEnv.PhonePeClientID,
			config.AppEnv.PhonePeClientSecret,
			config.AppEnv.PhonePeMerchantID,
			config.AppEnv.PhonePeBaseURL,
			config.AppEnv.FrontendURL,
			config.AppEnv.GatewayTimeout,
		),
		PayPal: gateway.NewPayPal(
			config.AppEnv.PayPalClientID,
			config.AppEnv.PayPalClientSecret,
			config.AppEnv.PayPalBaseURL,
			config.AppEnv.FrontendURL,
			config.AppEnv.GatewayTimeout,
		),
	}

	notifier := notify.NewNotifier(config.AppEnv.SendGridAPIKey, config.AppEnv.EmailFrom)
	documents := notify.NewDocumentClient(config.AppEnv.InvoiceServiceURL)
	webhookGuard := cache.NewGuard(config.AppEnv.RedisAddr, "storefront")

	r := gin.Default()

	r.GET("/track/:token", handlers.TrackOrder(db))
	r.GET("/payments/config", handlers.PaymentConfig(gateways))
	r.POST("/payments/phonepe/webhook", handlers.PhonePeWebhook(db, webhookGuard))

	user := r.Group("/")
	user.Use(middleware.UserAuth(config.AppEnv.JWTSecret))
	{
		user.POST("/orders", handlers.CreateOrder(db, notifier, documents, config.AppEnv.EstimatedDeliveryDays))
		user.GET("/orders/my-orders", handlers.MyOrders(db))
		user.GET("/orders/:id", handlers.GetOrder(db))

		user.POST("/coupons/validate", handlers.ValidateCoupon(db))

		user.POST("/payments/:gateway/create-order", handlers.CreatePaymentOrder(db, gateways))
		user.POST("/payments/:gateway/verify", handlers.ConfirmPayment(db, gateways))
	}

	admin := r.Group("/admin/api")
	admin.Use(middleware.AdminAuth(config.AppEnv.JWTSecret))
	{
		admin.GET("/orders", handlers.ListOrders(db))
		admin.PATCH("/orders/:id/status", handlers.UpdateOrderStatus(db, notifier))
		admin.POST("/orders/:id/tracking", handlers.AddTrackingEvent(db, notifier))
		admin.DELETE("/orders/:id/tracking/:eventId", handlers.DeleteTrackingEvent(db))

		admin.GET("/coupons", handlers.ListCoupons(db))
		admin.POST("/coupons", handlers.CreateCoupon(db))
		admin.PUT("/coupons/:id", handlers.UpdateCoupon(db))
		admin.DELETE("/coupons/:id", handlers.DeleteCoupon(db))
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	r.Run(":" + port)
}
