package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	_ "github.com/rogerio-castellano/product-catalog/docs"
	"github.com/rogerio-castellano/product-catalog/internal/decision"
	"github.com/rogerio-castellano/product-catalog/internal/http/admission"
	"github.com/rogerio-castellano/product-catalog/internal/http/handlers"
	"github.com/rogerio-castellano/product-catalog/internal/repo"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

const (
	APIPrefix      = "/api"
	DiagnosticPath = "/test-path"
)

type Dependencies struct {
	Products  repo.ProductRepository
	Protector decision.Protector
	Logger    *zap.Logger
	StaticDir string
	// Env is reported by the diagnostics route; it defaults from Production.
	Env        string
	Production bool
	// TrustedProxies may set the client address through forwarding headers.
	TrustedProxies decision.TrustedProxies
}

// NewRouter wires the admission pipeline in front of the dispatcher:
// diagnostics, then the API, then API docs, then static files and the SPA fallback.
func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	pipeline := admission.New(
		errorResponder(deps.Logger),
		admission.Standard(deps.Logger, deps.TrustedProxies, admission.RateLimitOptions{
			Protector:  deps.Protector,
			Production: deps.Production,
		})...,
	)

	if deps.Env == "" {
		deps.Env = "development"
		if deps.Production {
			deps.Env = "production"
		}
	}

	site := newStaticSite(deps.StaticDir, deps.Env, deps.Production, deps.Logger)

	r := chi.NewRouter()
	r.Use(pipeline.Handler)

	r.Get(DiagnosticPath, site.diagnostics)
	r.Mount(APIPrefix, apiRouter(handlers.NewProductHandler(deps.Products, deps.Logger)))
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.NotFound(site.ServeHTTP)
	r.MethodNotAllowed(site.ServeHTTP)
	return r
}

func apiRouter(products *handlers.ProductHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/products", products.GetProducts)
	r.Post("/products", products.CreateProduct)
	r.Get("/products/{id}", products.GetProductByID)
	r.Put("/products/{id}", products.UpdateProduct)
	r.Delete("/products/{id}", products.DeleteProduct)
	r.Get("/test", apiTest)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// apiTest godoc
// @Summary Liveness probe
// @Tags diagnostics
// @Produce json
// @Success 200 {object} map[string]string
// @Router /test [get]
func apiTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "API is working"})
}
