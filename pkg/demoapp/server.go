package demoapp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// Server is a running App bound to a local listener.
type Server struct {
	// URL is the base URL of the app, e.g. http://127.0.0.1:53211
	URL string

	srv  *http.Server
	done chan error

	once sync.Once
	err  error
}

// Start serves the app on addr. An empty addr picks a free loopback port.
func (a *App) Start(addr string) (*Server, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := &Server{
		URL: "http://" + ln.Addr().String(),
		srv: &http.Server{
			Handler:           a.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		done: make(chan error, 1),
	}
	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()
	a.logger.Infof("demo app listening on %s", s.URL)
	return s, nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
// Later calls return the first call's result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.once.Do(func() {
		if err := s.srv.Shutdown(ctx); err != nil {
			s.err = err
			return
		}
		s.err = <-s.done
	})
	return s.err
}
