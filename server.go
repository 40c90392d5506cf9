package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stocklinkhq/stocklink_backend/config"
	"github.com/stocklinkhq/stocklink_backend/models"
	"github.com/stocklinkhq/stocklink_backend/utils"
	"github.com/stocklinkhq/stocklink_backend/workflow"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("stocklink-fulfillment")

func init() {
	// Custom binding validation: reject unknown order statuses before the
	// request reaches the transition machinery.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("orderstatus", func(fl validator.FieldLevel) bool {
			return models.OrderStatus(fl.Field().String()).IsValid()
		})
	}
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

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the startup probe passes. Until the DB is
	// ready, app endpoints return 503.
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
	// One server span per request; otelgorm picks the parent up from the
	// request context.
	r.Use(func(c *gin.Context) {
		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+name)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.Use(identityMiddleware())
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production require an explicit allowlist via CORS_ALLOWED_ORIGINS.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	registerRoutes(r)
	r.NoRoute(customNotFoundHandler)

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

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate runs DDL that can block tables; allow running it as a
	// separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	workflow.InstallDefaultCalculator()

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func registerRoutes(r *gin.Engine) {
	r.POST("/items", createItemHandler)
	r.POST("/items/batch", batchCreateItemsHandler)
	r.GET("/items", listItemsHandler)
	r.GET("/items/:id", getItemHandler)
	r.GET("/items/:id/activities", listItemActivitiesHandler)

	r.POST("/orders", createOrderHandler)
	r.GET("/orders", listOrdersHandler)
	r.GET("/orders/:id", getOrderHandler)
	r.PUT("/orders/:id", updateOrderHandler)
	r.DELETE("/orders/:id", deleteOrderHandler)
	r.PATCH("/orders/:id/status", updateOrderStatusHandler)
	r.GET("/orders/:id/history", orderHistoryHandler)

	r.PATCH("/order-items/:id", updateOrderItemHandler)
	r.PATCH("/order-items/batch", batchUpdateOrderItemsHandler)

	r.POST("/order-schedules", createOrderScheduleHandler)
	r.GET("/order-schedules", listOrderSchedulesHandler)
	r.PATCH("/order-schedules/:id/active", setOrderScheduleActiveHandler)

	// Ops tooling: detect (and optionally mark) orders past forecast.
	r.POST("/internal/ops/overdue-scan", overdueScanHandler)
}

// identityMiddleware lifts the caller identity headers into the request
// context so model writes can stamp user attribution. Upstream gateway is
// trusted to have authenticated the caller.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if v := c.GetHeader("x-user-id"); v != "" {
			if userId, err := strconv.Atoi(v); err == nil && userId > 0 {
				ctx = utils.SetUserIdInContext(ctx, userId)
			}
		}
		if v := c.GetHeader("x-user-name"); v != "" {
			ctx = utils.SetUserNameInContext(ctx, v)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// respondError maps classified domain errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch utils.ClassifyError(err) {
	case utils.ErrorKindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": utils.ErrorKindValidation})
	case utils.ErrorKindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": utils.ErrorKindNotFound})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": utils.ErrorKindUnknown})
	}
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id", "code": utils.ErrorKindValidation})
		return 0, false
	}
	return id, true
}

func createItemHandler(c *gin.Context) {
	var input models.NewItem
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": utils.ErrorKindValidation})
		return
	}
	item, err := models.CreateItem(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func batchCreateItemsHandler(c *gin.Context) {
	var inputs []*models.NewItem
	if err := c.ShouldBindJSON(&inputs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": utils.ErrorKindValidation})
		return
	}
	result, err := models.BatchCreateItems(c.Request.Context(), inputs)
	if err != nil {
		respondError(c, err)
		return
	}
	// 207: some entries may have failed while others committed.
	status := http.StatusOK
	if result.FailureCount > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, result)
}

func listItemsHandler(c *gin.Context) {
	var name *string
	if v := c.Query("name"); v != "" {
		name = &v
	}
	items, err := models.GetItems(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func getItemHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	item, err := models.GetItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func listItemActivitiesHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var reason *models.ActivityReason
	if v := c.Query("reason"); v != "" {
		r := models.ActivityReason(v)
		reason = &r
	}
	activities, err := models.GetActivities(c.Request.Context(), &id, nil, reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, activities)
}

func createOrderHandler(c *gin.Context) {
	var input models.NewOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": utils.ErrorKindValidation})
		return
	}
	order, err := models.CreateOrder(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func listOrdersHandler(c *gin.Context) {
	filter := models.OrderFilter{}
	if v := c.Query("supplier_id"); v != "" {
		if supplierId, err := strconv.Atoi(v); err == nil {
			filter.SupplierId = &supplierId
		}
	}
	if v := c.Query("status"); v != "" {
		status, err := models.ParseOrderStatus(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": utils.ErrorKindValidation})
			return
		}
		filter.Status = &status
	}
	if v := c.Query("overdue"); v != "" {
		overdue := strings.EqualFold(v, "true")
		filter.Overdue = &overdue
	}
	orders, err := models.GetOrders(c.Request.Context(), &filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func getOrderHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	order, err := models.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func updateOrderHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.UpdateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": utils.ErrorKindValidation})
		return
	}
	order, err := models.UpdateOrder(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func deleteOrderHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	if err := models.DeleteOrder(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func updateOrderStatusHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input struct {
		Status string `json:"status" binding:"required,orderstatus"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": utils.ErrorKindValidation})
		return
	}
	status, err := models.ParseOrderStatus(input.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": utils.ErrorKindValidation})
		return
	}
	order, err := models.UpdateOrderStatus(c.Request.Context(), id, status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func orderHistoryHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	histories, err := models.GetHistories(c.Request.Context(), id, models.ReferenceTypeOrder)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, histories)
}

func updateOrderItemHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.UpdateOrderItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": utils.ErrorKindValidation})
		return
	}
	orderItem, err := models.UpdateOrderItem(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderItem)
}

func batchUpdateOrderItemsHandler(c *gin.Context) {
	var inputs []*models.BatchUpdateOrderItemInput
	if err := c.ShouldBindJSON(&inputs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": utils.ErrorKindValidation})
		return
	}
	result, err := models.BatchUpdateOrderItems(c.Request.Context(), inputs)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if result.FailureCount > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, result)
}

func createOrderScheduleHandler(c *gin.Context) {
	var input models.NewOrderSchedule
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": utils.ErrorKindValidation})
		return
	}
	schedule, err := models.CreateOrderSchedule(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, schedule)
}

func listOrderSchedulesHandler(c *gin.Context) {
	activeOnly := strings.EqualFold(c.Query("active"), "true")
	schedules, err := models.GetOrderSchedules(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedules)
}

func setOrderScheduleActiveHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": utils.ErrorKindValidation})
		return
	}
	schedule, err := models.SetOrderScheduleActive(c.Request.Context(), id, utils.DereferencePtr(input.Active))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

func overdueScanHandler(c *gin.Context) {
	mark := strings.EqualFold(c.Query("mark"), "true")
	result, err := workflow.ScanOverdueOrders(c.Request.Context(), mark)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// customErrorLogger logs only requests that recorded errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
