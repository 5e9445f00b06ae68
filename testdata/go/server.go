// Package demo runs a tiny server.
package demo

import "net/http"

// MaxConns limits concurrent connections.
const MaxConns = 64

// Server serves HTTP requests.
type Server struct {
	// Addr is the listen address.
	Addr string
	mux  *http.ServeMux
}

// Handler is implemented by request handlers.
type Handler interface {
	// Serve handles one request.
	Serve(w http.ResponseWriter, r *http.Request)
}

// Start starts the server.
func (s *Server) Start() error {
	return http.ListenAndServe(s.Addr, s.mux)
}

func newMux() *http.ServeMux {
	return http.NewServeMux()
}
