package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"crowdfund/internal/http/handlers"
	"crowdfund/internal/middleware"
)

// Options configures the router middleware stack.
type Options struct {
	JWTSecret       string
	JWTIssuer       string
	CORSOrigins     []string
	RateLimitPerMin int
	Logger          zerolog.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
		middleware.RateLimit(opts.RateLimitPerMin, time.Minute),
	)

	auth := middleware.AuthJWT(opts.JWTSecret, opts.JWTIssuer)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/openapi.json", app.OpenAPIJSON)
		r.Get("/docs", app.OpenAPIDocs)

		r.Get("/accounts/{identity}/balance", app.AccountBalance)

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", app.ListCampaigns)
			r.With(auth).Post("/", app.CreateCampaign)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", app.GetCampaign)
				r.With(auth).Post("/contributions", app.Contribute)
				r.Get("/contributors/{identity}", app.IsContributor)

				r.Get("/requests", app.ListRequests)
				r.With(auth).Post("/requests", app.CreateRequest)
				r.Route("/requests/{index}", func(r chi.Router) {
					r.Get("/", app.GetRequest)
					r.Get("/approvals/{identity}", app.HasApproved)
					r.With(auth).Post("/approve", app.ApproveRequest)
					r.With(auth).Post("/finalize", app.FinalizeRequest)
				})
			})
		})
	})

	return r
}
