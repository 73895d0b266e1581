package httpapi

import (
	"expvar"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/greenstem/order-pipeline/internal/http/openapi"
	"github.com/greenstem/order-pipeline/internal/metrics"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App, reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/roles", app.setRoleHandler)
	mux.HandleFunc("/orders", app.postOrderHandler)
	mux.HandleFunc("/products/", app.getProductHandler)
	mux.HandleFunc("/audit", app.getAuditHandler)
	mux.HandleFunc("/healthz", app.healthHandler)
	mux.HandleFunc("/debug/queue", app.queueStatsHandler)
	mux.Handle("/debug/vars", expvar.Handler())
	if reg != nil {
		mux.Handle("/metrics", metrics.Handler(reg))
	}
	mux.HandleFunc("/openapi.yaml", app.openapiHandler)
	mux.HandleFunc("/docs", app.docsHandler)
	return WithRequestID(WithLogging(app.Met, mux))
}

func (a *App) openapiHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openapi.YAML)
}

func (a *App) docsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
	_, _ = w.Write([]byte(html))
}
