package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"member_portal_echo/internal/handlers"
	appMiddleware "member_portal_echo/internal/middleware"
	"member_portal_echo/internal/models"
	"member_portal_echo/internal/repository"
	"member_portal_echo/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Form data is stored encrypted; refuse to start without a key.
	if err := models.SetBlobKey([]byte(os.Getenv("ENROLLMENT_DATA_KEY"))); err != nil {
		log.Fatalf("Invalid ENROLLMENT_DATA_KEY: %v", err)
	}

	// Initialize Firebase
	credPath := os.Getenv("FIREBASE_CREDENTIALS_PATH")
	if credPath == "" {
		credPath = "./firebase-service-account.json"
	}

	authClient, err := services.InitFirebase(credPath)
	if err != nil {
		log.Printf("Warning: Firebase initialization failed: %v", err)
		log.Println("Auth features will not work until valid credentials are provided")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Redis backs the per-user invoice lock; payment is unsafe without it.
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		log.Fatal("REDIS_URL not set")
	}
	cache, err := services.NewRedisCache(redisURL)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer cache.Close()

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	// Repositories
	users := repository.NewUserRepository(db)
	activities := repository.NewActivityRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)

	// Services
	gateway := services.NewStripeGateway()
	locker := services.NewRedisLocker(cache)
	mailer := services.NewEmailService()
	pricing := services.NewPricingService(gateway)
	customers := services.NewCustomerService(gateway, users)
	invoices := services.NewInvoiceService(gateway, pricing, customers, enrollments, locker)
	sources := services.NewSourceService(gateway, customers, enrollments, baseURL)
	enrollmentService := services.NewEnrollmentService(enrollments, activities, mailer)

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = appMiddleware.CustomErrorHandler

	// Initialize handlers
	activityHandler := handlers.NewActivityHandler(activities, cache)
	enrollmentHandler := handlers.NewEnrollmentHandler(enrollments, activities, enrollmentService, cache)
	paymentHandler := handlers.NewPaymentHandler(enrollments, activities, enrollmentService, invoices, sources)

	// Public routes
	e.GET("/activities", activityHandler.ListActivities)
	e.GET("/activities/:id", activityHandler.ShowActivity)
	e.GET("/activities/slug/:slug", activityHandler.ShowActivityBySlug)

	// Protected routes
	protected := e.Group("")
	protected.Use(appMiddleware.RequireAuth(authClient, users))

	protected.POST("/activities/:id/enroll", enrollmentHandler.Enroll)
	protected.GET("/activities/:id/enrollment", enrollmentHandler.ShowEnrollment)
	protected.POST("/activities/:id/form", enrollmentHandler.SubmitForm)
	protected.DELETE("/activities/:id/enrollment", enrollmentHandler.CancelEnrollment)
	protected.POST("/enrollments/:id/transfer", enrollmentHandler.TransferEnrollment)

	protected.POST("/activities/:id/pay", paymentHandler.StartPayment)
	protected.GET("/activities/:id/pay/return", paymentHandler.PaymentReturn)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
