package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ordbot/storefront/internal/transport"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const requestTimeout = 30 * time.Second

// UpdateHandler consumes one decoded transport update.
type UpdateHandler interface {
	Handle(ctx context.Context, upd transport.Update) error
}

// Server exposes the webhook and the token-gated ops API.
type Server struct {
	router     UpdateHandler
	orders     OrdersReader
	products   ProductsReader
	adminToken string
}

type OrdersReader interface {
	ListAll(ctx context.Context) ([]*OrderView, error)
}

type ProductsReader interface {
	List(ctx context.Context) ([]*ProductView, error)
}

// OrderView and ProductView are the ops API shapes; they decouple the wire
// format from the domain structs.
type OrderView struct {
	ID          string  `json:"id"`
	CustomerID  int64   `json:"customer_id"`
	Status      string  `json:"status"`
	TotalFiat   float64 `json:"total_fiat"`
	TotalCrypto float64 `json:"total_crypto"`
	CreatedAt   string  `json:"created_at"`
}

type ProductView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func NewServer(router UpdateHandler, orders OrdersReader, products ProductsReader, adminToken string) *Server {
	return &Server{
		router:     router,
		orders:     orders,
		products:   products,
		adminToken: adminToken,
	}
}

// Handler builds the chi route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/webhook", s.handleWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.adminTokenAuth)
		r.Get("/orders", s.handleListOrders)
		r.Get("/products", s.handleListProducts)
	})

	return otelhttp.NewHandler(r, "gateway")
}

// POST /webhook
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var upd transport.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid update payload")
		return
	}
	if upd.CustomerID == 0 {
		respondError(w, http.StatusBadRequest, "bad_request", "customer_id is required")
		return
	}

	if err := s.router.Handle(r.Context(), upd); err != nil {
		log.Printf("webhook handling failed customer_id=%d: %v", upd.CustomerID, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/v1/orders
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.ListAll(r.Context())
	if err != nil {
		log.Printf("list orders failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	if orders == nil {
		orders = make([]*OrderView, 0)
	}
	respondJSON(w, http.StatusOK, orders)
}

// GET /api/v1/products
func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.products.List(r.Context())
	if err != nil {
		log.Printf("list products failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	if products == nil {
		products = make([]*ProductView, 0)
	}
	respondJSON(w, http.StatusOK, products)
}

// adminTokenAuth gates the ops endpoints on a static header token.
func (s *Server) adminTokenAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" || r.Header.Get("X-Admin-Token") != s.adminToken {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
