package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/graintrack/mill_backend/config"
	"github.com/graintrack/mill_backend/middlewares"
	"github.com/graintrack/mill_backend/models"
	"github.com/graintrack/mill_backend/utils"
	"github.com/graintrack/mill_backend/workflow"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func customNotFoundHandler(c *gin.Context) {
	respondError(c, utils.NewNotFoundError("route not found"))
}

func createMillHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isAdmin, _ := utils.GetIsAdminFromContext(c.Request.Context()); !isAdmin {
			c.JSON(http.StatusUnauthorized, ApiResponse{StatusCode: http.StatusUnauthorized, Message: "unauthorized"})
			return
		}
		var input models.NewMill
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		mill, err := models.CreateMill(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		respondCreated(c, mill, "created")
	}
}

func registerRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")

	// stock ledger
	api.POST("/stock-transactions", recordStockTransactionHandler())
	api.GET("/stock-transactions", paginateHandler(models.PaginateStockTransactions))
	api.GET("/stock-transactions/:id", getHandler(models.GetStockTransaction))
	api.GET("/stock/balance", stockBalanceHandler())
	api.GET("/stock/summary", stockLedgerSummaryHandler())
	api.GET("/stock/current", currentStocksHandler())
	api.GET("/stock/posting-status", stockPostingStatusHandler())

	// inward register
	api.POST("/inward-entries", createHandler(models.CreateInwardEntry))
	api.GET("/inward-entries", paginateHandler(models.PaginateInwardEntries))
	api.GET("/inward-entries/summary", summaryHandler(models.GetInwardSummary))
	api.GET("/inward-entries/:id", getHandler(models.GetInwardEntry))
	api.PUT("/inward-entries/:id", updateHandler(models.UpdateInwardEntry))
	api.DELETE("/inward-entries/:id", deleteHandler(models.DeleteInwardEntry))
	api.DELETE("/inward-entries/bulk", bulkDeleteHandler(models.BulkDeleteInwardEntries))

	// outward register
	api.POST("/outward-entries", createHandler(models.CreateOutwardEntry))
	api.GET("/outward-entries", paginateHandler(models.PaginateOutwardEntries))
	api.GET("/outward-entries/summary", summaryHandler(models.GetOutwardSummary))
	api.GET("/outward-entries/:id", getHandler(models.GetOutwardEntry))
	api.PUT("/outward-entries/:id", updateHandler(models.UpdateOutwardEntry))
	api.DELETE("/outward-entries/:id", deleteHandler(models.DeleteOutwardEntry))
	api.DELETE("/outward-entries/bulk", bulkDeleteHandler(models.BulkDeleteOutwardEntries))

	// purchase deals
	api.POST("/purchase-deals", createHandler(models.CreatePurchaseDeal))
	api.GET("/purchase-deals", paginateHandler(models.PaginatePurchaseDeals))
	api.GET("/purchase-deals/summary", summaryHandler(models.GetPurchaseSummary))
	api.GET("/purchase-deals/:id", getHandler(models.GetPurchaseDeal))
	api.PUT("/purchase-deals/:id", updateHandler(models.UpdatePurchaseDeal))
	api.DELETE("/purchase-deals/:id", deleteHandler(models.DeletePurchaseDeal))
	api.DELETE("/purchase-deals/bulk", bulkDeleteHandler(models.BulkDeletePurchaseDeals))

	// sale deals
	api.POST("/sale-deals", createHandler(models.CreateSaleDeal))
	api.GET("/sale-deals", paginateHandler(models.PaginateSaleDeals))
	api.GET("/sale-deals/summary", summaryHandler(models.GetSaleSummary))
	api.GET("/sale-deals/:id", getHandler(models.GetSaleDeal))
	api.PUT("/sale-deals/:id", updateHandler(models.UpdateSaleDeal))
	api.DELETE("/sale-deals/:id", deleteHandler(models.DeleteSaleDeal))
	api.DELETE("/sale-deals/bulk", bulkDeleteHandler(models.BulkDeleteSaleDeals))

	// master data
	api.POST("/parties", createHandler(models.CreateParty))
	api.GET("/parties", paginateHandler(models.PaginateParties))
	api.GET("/parties/all", listHandler(models.ListParties))
	api.GET("/parties/:id", getHandler(models.GetParty))
	api.PUT("/parties/:id", updateHandler(models.UpdateParty))
	api.DELETE("/parties/:id", deleteHandler(models.DeleteParty))
	api.POST("/vehicles", createHandler(models.CreateVehicle))
	api.GET("/vehicles", paginateHandler(models.PaginateVehicles))
	api.GET("/vehicles/all", listHandler(models.ListVehicles))
	api.GET("/vehicles/:id", getHandler(models.GetVehicle))
	api.PUT("/vehicles/:id", updateHandler(models.UpdateVehicle))
	api.DELETE("/vehicles/:id", deleteHandler(models.DeleteVehicle))

	// reports
	api.GET("/reports/stock-summary", stockSummaryReportHandler())
	api.GET("/reports/stock-summary/export", stockSummaryExportHandler())

	// admin / ops
	r.POST("/internal/mills", createMillHandler())
	r.POST("/internal/ops/outbox/replay", outboxReplayHandler())
	r.GET("/internal/ops/outbox/health", outboxHealthHandler())
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "mill-id", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(middlewares.SessionMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	registerRoutes(r)
	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Now DB is ready; run migrations.
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Start the outbox dispatcher (posts to the ledger AFTER commit).
	// Its claim query spans all mills, so tenant scoping is off for its context.
	dispatcherCtx, cancelDispatcher := context.WithCancel(
		utils.SetSkipTenantScopeInContext(context.Background(), true))
	defer cancelDispatcher()
	go workflow.NewOutboxDispatcher(db, logger).Run(dispatcherCtx)

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<minInt(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelDispatcher()

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}
