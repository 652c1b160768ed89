// Package httpserver builds the http.Server for the scan and custody API.
package httpserver

import (
	"net/http"
	"time"
)

// New builds the server. ReadHeaderTimeout bounds slow or abandoned scanner
// connections on the public verify endpoint; per-request deadlines beyond
// that are owned by the handlers and the anchor client, not the server.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
