package api

import (
	"net/http"

	"github.com/go-chi/cors"
)

type RouterOptions struct {
	// Links serves the opener websocket when non-nil.
	Links       http.Handler
	Metrics     http.Handler
	CORSOrigins []string
}

func Router(h *Handler, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", h.Health)

	mux.HandleFunc("GET /v1/entries", h.ListEntries)
	mux.HandleFunc("POST /v1/entries", h.CreateEntry)
	mux.HandleFunc("DELETE /v1/entries", h.ClearEntries)
	mux.HandleFunc("POST /v1/entries/import", h.ImportEntries)
	mux.HandleFunc("DELETE /v1/entries/{id}", h.DeleteEntry)
	mux.HandleFunc("PUT /v1/entries/{id}/status", h.SetEntryStatus)
	mux.HandleFunc("POST /v1/entries/{id}/send", h.SendEntry)
	mux.HandleFunc("GET /v1/entries/{id}/preview", h.PreviewEntry)
	mux.HandleFunc("GET /v1/stats", h.Stats)

	mux.HandleFunc("GET /v1/templates", h.ListTemplates)
	mux.HandleFunc("PUT /v1/templates/active", h.SelectTemplate)
	mux.HandleFunc("PUT /v1/templates/active/text", h.UpdateActiveText)
	mux.HandleFunc("POST /v1/templates/active/tags", h.InsertTag)
	mux.HandleFunc("POST /v1/templates/active/draft", h.DraftTemplate)

	mux.HandleFunc("GET /v1/settings", h.GetSettings)
	mux.HandleFunc("PUT /v1/settings", h.PutSettings)

	mux.HandleFunc("GET /v1/blast/status", h.BlastStatus)
	mux.HandleFunc("POST /v1/blast/start", h.BlastStart)
	mux.HandleFunc("POST /v1/blast/stop", h.BlastStop)

	mux.HandleFunc("GET /v1/export.csv", h.ExportCSV)

	if opts.Links != nil {
		mux.Handle("GET /v1/links", opts.Links)
	}
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("wasender"))
	})

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	})(mux)
}
