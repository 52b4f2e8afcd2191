package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with timeouts suited to a gateway that holds
// inbound connections only as long as its bounded downstream calls run.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
