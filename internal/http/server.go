package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	Router *chi.Mux
}

func NewServer(handler *Handler) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", handler.CreateOrder)
		r.Get("/{orderId}", handler.GetOrder)
		r.Get("/human/{humanId}", handler.GetOrderByHumanID)
		r.Post("/{orderId}/pay", handler.PayOrder)
		r.Post("/{orderId}/cancel", handler.CancelOrder)
		r.Post("/{orderId}/refund", handler.RefundOrder)
		r.Post("/{orderId}/settle", handler.SettleOrder)
	})

	r.Get("/merchants/{merchant}/orders", handler.ListMerchantOrders)

	r.Route("/oracle", func(r chi.Router) {
		r.Post("/rates", handler.SubmitRate)
		r.Get("/rates/{base}/{quote}", handler.GetLatestRate)
		r.Get("/nodes", handler.ListOracleNodes)
		r.Post("/nodes", handler.AddOracleNode)
		r.Delete("/nodes/{address}", handler.RemoveOracleNode)
	})

	r.Get("/pools/{tokenA}/{tokenB}", handler.GetPoolReserves)

	return &Server{Router: r}
}
