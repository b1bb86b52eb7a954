package api

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS returns middleware allowing browser clients from origins. An empty
// list allows any origin so the app can be reached over a LAN address.
func CORS(origins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}
	if len(origins) == 0 {
		opts.AllowOriginFunc = func(string) bool { return true }
	}
	return cors.New(opts).Handler
}
