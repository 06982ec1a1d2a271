package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/amasijo/bakery_backend/config"
	"github.com/amasijo/bakery_backend/events"
	"github.com/amasijo/bakery_backend/middlewares"
	"github.com/amasijo/bakery_backend/models"
	"github.com/amasijo/bakery_backend/store"
	"github.com/amasijo/bakery_backend/utils"
	"github.com/amasijo/bakery_backend/workflow"
)

const defaultPort = "8080"

func main() {
	logger := config.GetLogger()

	if err := config.ConnectDatabase(); err != nil {
		logger.Fatalf("database: %v", err)
	}
	documentStore, err := store.NewGormStore(config.GetDB())
	if err != nil {
		logger.Fatalf("document store: %v", err)
	}

	bus := events.NewBus()
	engine := workflow.NewEngine(documentStore, bus, logger)

	hub := events.NewHub(bus, logger)
	stopHub := hub.Run()
	defer stopHub()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middlewares.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
	}))

	registerRoutes(router, engine, hub)

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	srv := &http.Server{Addr: ":" + port, Handler: router}

	go func() {
		logger.Infof("listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

func registerRoutes(router *gin.Engine, engine *workflow.Engine, hub *events.Hub) {
	router.GET("/ws", func(c *gin.Context) {
		hub.Serve(c.Writer, c.Request)
	})

	router.POST("/sales", func(c *gin.Context) {
		var input models.NewSale
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sale, err := engine.CreateSale(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, sale)
	})

	router.PUT("/sales/:id", func(c *gin.Context) {
		var input models.NewSale
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sale, err := engine.EditSale(c.Request.Context(), c.Param("id"), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sale)
	})

	router.DELETE("/sales/:id", func(c *gin.Context) {
		if err := engine.DeleteSale(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	router.GET("/sales", func(c *gin.Context) {
		sales, err := engine.ListSales(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sales)
	})

	router.GET("/sales/:id", func(c *gin.Context) {
		sale, err := engine.GetSale(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sale)
	})

	router.GET("/sales/:id/status", func(c *gin.Context) {
		status, err := engine.InvoiceStatus(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": status})
	})

	router.POST("/payments", func(c *gin.Context) {
		var input workflow.NewCustomerPayment
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		records, err := engine.ApplyCustomerPayment(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, records)
	})

	router.DELETE("/payments/:id", func(c *gin.Context) {
		if err := engine.DeletePayment(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
	})

	router.POST("/payments/:id/verify", func(c *gin.Context) {
		payment, err := engine.VerifyPayment(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	})

	router.GET("/customers/:id/balance", func(c *gin.Context) {
		balance, err := engine.CustomerBalance(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		overdue, err := engine.CustomerOverdueBalance(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": balance, "overdue_balance": overdue})
	})

	router.POST("/customers", func(c *gin.Context) {
		var input models.NewCustomer
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		customer, err := engine.CreateCustomer(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, customer)
	})

	router.GET("/customers", func(c *gin.Context) {
		customers, err := engine.ListCustomers(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, customers)
	})

	router.POST("/products", func(c *gin.Context) {
		var product models.Product
		if err := c.ShouldBindJSON(&product); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		saved, err := engine.SetOpeningStock(c.Request.Context(), product)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, saved)
	})

	router.GET("/products", func(c *gin.Context) {
		products, err := engine.ListProducts(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, products)
	})

	router.POST("/transfers", func(c *gin.Context) {
		var input models.NewTransfer
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		record, err := engine.RecordTransfer(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, record)
	})

	router.GET("/transfers/net", func(c *gin.Context) {
		debts, err := engine.NetTransferDebts(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, debts)
	})
}

func respondError(c *gin.Context, err error) {
	c.Error(err)

	var (
		validationErr   *utils.ValidationError
		stockErr        *utils.InsufficientStockError
		productErr      *utils.ProductNotFoundError
		referenceErr    *utils.DuplicateReferenceError
		creditLimitErr  *utils.CreditLimitExceededError
		compensationErr *utils.CompensationFailureError
	)
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &validationErr),
		errors.As(err, &stockErr),
		errors.As(err, &productErr),
		errors.As(err, &referenceErr),
		errors.As(err, &creditLimitErr),
		errors.Is(err, utils.ErrInvalidReferenceFormat),
		errors.Is(err, utils.ErrCreditNoteTargetRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &compensationErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "manual_reconciliation_required": true})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
