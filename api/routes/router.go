package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/assetcart/api/controllers"
	"github.com/angelmondragon/assetcart/api/middleware"
	"github.com/angelmondragon/assetcart/internal/storefront"
	"github.com/angelmondragon/assetcart/pkg/config"
	"github.com/angelmondragon/assetcart/pkg/logger"
	"github.com/angelmondragon/assetcart/pkg/redis"
)

// Dependencies groups what the router needs beyond config and logging.
type Dependencies struct {
	Storefront  storefront.Service
	Idempotency redis.IdempotencyStore
	Gatherer    prometheus.Gatherer
	Ready       map[string]controllers.Pinger
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	svc := deps.Storefront
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ShopperSession(logg))
		r.Use(middleware.Identity(cfg.Identity, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(svc, logg))
			r.Post("/items", controllers.CartAddItem(svc, logg))
			r.Delete("/items/{index}", controllers.CartRemoveItem(svc, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", controllers.CheckoutBegin(svc, logg))
			r.Get("/", controllers.CheckoutFetch(svc, logg))
			r.Delete("/", controllers.CheckoutAbort(svc, logg))
			r.Put("/shipping", controllers.CheckoutUpdateShipping(svc, logg))
			r.Put("/payment", controllers.CheckoutSelectPayment(svc, logg))
			r.Post("/advance", controllers.CheckoutAdvance(svc, logg))
			r.Post("/back", controllers.CheckoutBack(svc, logg))
			r.With(middleware.Idempotency(deps.Idempotency, cfg.Idempotency.ResponseTTL, logg)).Post("/submit", controllers.CheckoutSubmit(svc, logg))
		})

		r.Get("/orders/{orderId}", controllers.OrderDetail(svc, logg))
	})

	return r
}
