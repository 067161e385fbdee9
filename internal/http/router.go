package http

import "net/http"

// RouterConfig wires handlers into the router. Ready reports whether the
// agenda finished loading; nil means always ready.
type RouterConfig struct {
	Records    *RecordHandler
	FreeTime   *FreeTimeHandler
	History    *HistoryHandler
	Config     *ConfigHandler
	Ready      func() bool
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if cfg.Ready != nil && !cfg.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"loading"}` + "\n"))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
	})

	if cfg.Records != nil {
		mux.HandleFunc("GET /records", cfg.Records.List)
		mux.HandleFunc("POST /records", cfg.Records.Create)
		mux.HandleFunc("POST /records/check", cfg.Records.Check)
		mux.HandleFunc("GET /records/{id}", cfg.Records.Get)
		mux.HandleFunc("PATCH /records/{id}", cfg.Records.Update)
		mux.HandleFunc("DELETE /records/{id}", cfg.Records.Delete)
		mux.HandleFunc("POST /records/{id}/resolutions", cfg.Records.Resolve)
	}

	if cfg.FreeTime != nil {
		mux.HandleFunc("GET /free-time", cfg.FreeTime.List)
	}

	if cfg.History != nil {
		mux.HandleFunc("GET /history", cfg.History.State)
		mux.HandleFunc("POST /history/undo", cfg.History.Undo)
		mux.HandleFunc("POST /history/redo", cfg.History.Redo)
	}

	if cfg.Config != nil {
		mux.HandleFunc("GET /config", cfg.Config.Get)
		mux.HandleFunc("PUT /config", cfg.Config.Replace)
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}
