// Package server exposes the kiosk over HTTP: a REST API for clerk
// actions and a websocket endpoint that streams state snapshots to the
// display.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smartscale/kiosk/internal/auth"
	"github.com/smartscale/kiosk/internal/cart"
	"github.com/smartscale/kiosk/internal/engine"
	"github.com/smartscale/kiosk/internal/middleware"
	"github.com/smartscale/kiosk/internal/models"
	"github.com/smartscale/kiosk/internal/storage"
)

// Server wires the engine, store, and auth behind a gin router.
type Server struct {
	engine *engine.Engine
	store  storage.Store
	auth   *auth.PINAuthenticator
	jwt    *auth.JWTManager
	hub    *Hub
	router *gin.Engine
}

// New builds the server and registers all routes. The gatherer backs
// the /metrics endpoint; pass nil to use the default registry.
func New(eng *engine.Engine, store storage.Store, pinAuth *auth.PINAuthenticator, jwtManager *auth.JWTManager, hub *Hub, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		engine: eng,
		store:  store,
		auth:   pinAuth,
		jwt:    jwtManager,
		hub:    hub,
	}
	s.router = s.buildRouter(gatherer)
	return s
}

// Router returns the underlying gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	slog.Info("kiosk API listening", "addr", addr)
	return s.router.Run(addr)
}

func (s *Server) buildRouter(gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	router.GET("/healthz", s.handleHealth)
	if gatherer == nil {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	} else {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	router.POST("/api/login", s.handleLogin)
	router.GET("/ws", s.hub.handleWS(s.engine))

	api := router.Group("/api", middleware.RequireClerk(s.jwt))
	{
		api.GET("/state", s.handleState)

		api.POST("/detection/start", s.handleStartDetection)
		api.POST("/detection/rescan", s.handleRescan)
		api.POST("/detection/stop", s.handleStopDetection)

		api.POST("/cart/confirm", s.handleConfirm)
		api.DELETE("/cart/items/:index", s.handleRemoveItem)
		api.POST("/cart/clear", s.handleClearCart)
		api.POST("/checkout", s.handleCheckout)

		api.GET("/products", s.handleListProducts)
		api.POST("/products", s.handleAddProduct)
		api.GET("/sessions/:id", s.handleGetSession)

		api.POST("/clerks", s.handleRegisterClerk)
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"connected": s.engine.State().Connected,
	})
}

type loginRequest struct {
	Name string `json:"name" binding:"required"`
	PIN  string `json:"pin" binding:"required"`
}

type loginResponse struct {
	Token string    `json:"token"`
	Clerk clerkView `json:"clerk"`
}

type clerkView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and pin are required"})
		return
	}

	clerk, err := s.auth.Authenticate(c.Request.Context(), req.Name, req.PIN)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidCredentials.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	token, err := s.jwt.Generate(clerk)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token: token,
		Clerk: clerkView{ID: clerk.ID, Name: clerk.Name},
	})
}

type registerClerkRequest struct {
	Name string `json:"name" binding:"required"`
	PIN  string `json:"pin" binding:"required"`
}

func (s *Server) handleRegisterClerk(c *gin.Context) {
	var req registerClerkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and pin are required"})
		return
	}

	clerk, err := s.auth.Register(c.Request.Context(), req.Name, req.PIN)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakPIN), errors.Is(err, auth.ErrNameExists):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create clerk"})
		}
		return
	}

	c.JSON(http.StatusCreated, clerkView{ID: clerk.ID, Name: clerk.Name})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.State())
}

func (s *Server) handleStartDetection(c *gin.Context) {
	if err := s.engine.StartDetection(c.Request.Context()); err != nil {
		if errors.Is(err, engine.ErrInvalidState) {
			c.JSON(http.StatusConflict, gin.H{"error": "detection already running"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start detection"})
		return
	}
	c.JSON(http.StatusOK, s.engine.State())
}

func (s *Server) handleRescan(c *gin.Context) {
	s.engine.Rescan(c.Request.Context())
	c.JSON(http.StatusOK, s.engine.State())
}

func (s *Server) handleStopDetection(c *gin.Context) {
	s.engine.StopDetection()
	c.JSON(http.StatusOK, s.engine.State())
}

type confirmRequest struct {
	// Product overrides the detected product for manual entry or
	// correction. Weight overrides the detected weight in kilograms.
	Product *models.Product `json:"product,omitempty"`
	Weight  float64         `json:"weight,omitempty"`
}

func (s *Server) handleConfirm(c *gin.Context) {
	var req confirmRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid confirm payload"})
			return
		}
	}

	item, err := s.engine.ConfirmCurrent(c.Request.Context(), req.Product, req.Weight)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidState) {
			c.JSON(http.StatusConflict, gin.H{"error": "nothing to confirm"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to confirm item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": item, "state": s.engine.State()})
}

func (s *Server) handleRemoveItem(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
		return
	}

	item, err := s.engine.RemoveCartItem(index)
	if err != nil {
		if errors.Is(err, cart.ErrIndexOutOfRange) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no cart item at that index"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": item, "state": s.engine.State()})
}

func (s *Server) handleClearCart(c *gin.Context) {
	s.engine.ClearCart()
	c.JSON(http.StatusOK, s.engine.State())
}

func (s *Server) handleCheckout(c *gin.Context) {
	receipt, err := s.engine.Checkout(c.Request.Context())
	if err != nil {
		if errors.Is(err, engine.ErrInvalidState) {
			c.JSON(http.StatusConflict, gin.H{"error": "cart is empty"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "checkout failed"})
		return
	}

	slog.Info("checkout completed",
		"clerk_id", middleware.ClerkID(c),
		"session_id", receipt.SessionID,
		"items", len(receipt.Items),
		"amount", receipt.Totals.Amount,
	)
	c.JSON(http.StatusOK, receipt)
}

func (s *Server) handleListProducts(c *gin.Context) {
	products, err := s.store.ListProducts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list products"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

type addProductRequest struct {
	Name      string          `json:"name" binding:"required"`
	UnitPrice float64         `json:"unit_price" binding:"required"`
	Category  models.Category `json:"category"`
	ImageURL  string          `json:"image_url"`
}

func (s *Server) handleAddProduct(c *gin.Context) {
	var req addProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and unit_price are required"})
		return
	}

	product, err := s.store.AddProduct(c.Request.Context(), models.Product{
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		Category:  req.Category,
		ImageURL:  req.ImageURL,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add product"})
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (s *Server) handleGetSession(c *gin.Context) {
	session, err := s.store.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}
	c.JSON(http.StatusOK, session)
}

// Shutdown closes the hub; the engine and store are closed by main.
func (s *Server) Shutdown(_ context.Context) error {
	s.hub.Close()
	return nil
}
