// SPDX-FileCopyrightText: 2023 Weston Schmidt <weston_schmidt@alumni.purdue.edu>
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xmidt-org/arrange/arrangetls"
	"github.com/xmidt-org/httpaux"
	serveraux "github.com/xmidt-org/httpaux/server"
)

var ErrInvalidPath = errors.New("invalid path")

type Config struct {
	// Address corresponds to http.Server.Addr.  An empty address disables the
	// server.
	Address string

	// MetricsPath is the url path of the prometheus metrics.
	MetricsPath string

	// StatusPath is the url path of the json status.
	StatusPath string

	// ReadTimeout corresponds to http.Server.ReadTimeout
	ReadTimeout time.Duration

	// ReadHeaderTimeout corresponds to http.Server.ReadHeaderTimeout
	ReadHeaderTimeout time.Duration

	// WriteTime corresponds to http.Server.WriteTimeout
	WriteTimeout time.Duration

	// IdleTimeout corresponds to http.Server.IdleTimeout
	IdleTimeout time.Duration

	// MaxHeaderBytes corresponds to http.Server.MaxHeaderBytes
	MaxHeaderBytes int

	// KeepAlive corresponds to net.ListenConfig.KeepAlive.  This value is
	// only used for listeners created via Listen.
	KeepAlive time.Duration

	// Header supplies HTTP headers to emit on every response from this server
	Headers http.Header

	// TLS is the optional unmarshaled TLS configuration.  If set, the resulting
	// server will use HTTPS.
	TLS *arrangetls.Config
}

// Routes are the handlers the server exposes.  Status is mounted on "/" and
// is expected to handle StatusPath itself.
type Routes struct {
	Metrics http.Handler
	Status  http.Handler
}

func (c Config) metricsPath() string {
	if len(c.MetricsPath) > 0 {
		return c.MetricsPath
	}
	return "/metrics"
}

// Validate checks that the metrics and status paths are absolute, are not the
// root (the status page lives there) and do not collide.
func (c Config) Validate() error {
	metrics := c.metricsPath()
	for _, p := range []string{metrics, c.StatusPath} {
		if !strings.HasPrefix(p, "/") || p == "/" {
			return fmt.Errorf("%w: '%s'", ErrInvalidPath, p)
		}
	}

	if metrics == c.StatusPath {
		return fmt.Errorf("%w: metrics and status both use '%s'", ErrInvalidPath, metrics)
	}

	return nil
}

func (c Config) Handler(routes Routes) (server *http.Server, err error) {
	// This bit converts the headers into the httpaux.Header list then decorates
	// the outgoing headers via a chained http.Handler
	headers := httpaux.NewHeader(c.Headers)
	decorate := serveraux.Header(headers.SetTo)

	mux := http.NewServeMux()
	if routes.Metrics != nil {
		mux.Handle(c.metricsPath(), decorate(routes.Metrics))
	}
	if routes.Status != nil {
		mux.Handle("/", decorate(routes.Status))
	}

	server = &http.Server{
		Addr:              c.Address,
		Handler:           mux,
		ReadTimeout:       c.ReadTimeout,
		ReadHeaderTimeout: c.ReadHeaderTimeout,
		WriteTimeout:      c.WriteTimeout,
		IdleTimeout:       c.IdleTimeout,
		MaxHeaderBytes:    c.MaxHeaderBytes,
	}

	server.TLSConfig, err = c.TLS.New()

	return
}
