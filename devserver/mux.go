package devserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MuxConfig configures NewServeMux.
type MuxConfig struct {
	// Gatherer is exposed on /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// ImportMapParams are the placeholder values used by /import-map.json.
	// Missing prefixes default to <context>/frontend and <context>/lib.
	ImportMapParams map[string]string
	// Root is the front end directory scanned for the import map.
	Root string
	// ContextPath is the URL prefix of the application.
	ContextPath string
}

// NewServeMux mounts h at the context path together with the generated
// import map and, when configured, Prometheus metrics.
func NewServeMux(h *Handler, cfg MuxConfig) *http.ServeMux {
	mux := http.NewServeMux()

	params := map[string]string{
		FrontendPrefixPlaceholder: cfg.ContextPath + "/" + frontendSegment,
		LibraryPrefixPlaceholder:  cfg.ContextPath + "/lib",
		AppRevisionPlaceholder:    "development",
	}

	for key, value := range cfg.ImportMapParams {
		if value != "" {
			params[key] = value
		}
	}

	mux.HandleFunc("GET "+cfg.ContextPath+"/import-map.json", func(w http.ResponseWriter, r *http.Request) {
		importMap, err := GenerateImportMap(cfg.Root)
		if err != nil {
			h.log.Error("failed to generate import map", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

			return
		}

		body, err := importMap.Render(params)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "application/importmap+json")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write([]byte(body))
	})

	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	mux.Handle("/", h)

	return mux
}
