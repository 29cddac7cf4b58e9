package httpx

import (
	"log"
	"net/http"
	"time"
)

// CommonMiddleware returns an http.Handler that sets typical headers
// and logs each request before calling the next handler.
func CommonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[HTTP] %s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}
