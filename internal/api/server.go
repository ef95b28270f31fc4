package api

import (
	"net"
	"net/http"
	"strconv"
	"time"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	idleTimeout       = 60 * time.Second
	// a handler may run for the full request timeout and still needs to
	// write its 503
	writeSlack = 5 * time.Second
)

// NewServer listens on all interfaces at port.
func NewServer(port uint16, engine Engine, auditor Auditor, requestTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(int(port))),
		Handler:           NewRouter(engine, auditor, requestTimeout),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      requestTimeout + writeSlack,
		IdleTimeout:       idleTimeout,
	}
}
