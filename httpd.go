/*
	A minimal static file server speaking a subset of HTTP/1.0.
	One request per connection, GET only, every error answered with a JSON body.

	HTTP/1.0 protocol specification: https://datatracker.ietf.org/doc/html/rfc1945
*/

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// Exit codes
const (
	exitUsage = 1
	exitBind  = 2
)

type startupError struct {
	code int
	err  error
}

func (e *startupError) Error() string { return e.err.Error() }
func (e *startupError) Unwrap() error { return e.err }

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stderr, logger)
	stop()

	if err != nil {
		code := exitUsage
		var se *startupError
		if errors.As(err, &se) {
			code = se.code
		}
		if !errors.Is(err, errUsage) {
			logger.Error("server stopped", "error", err)
		}
		os.Exit(code)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer, logger *slog.Logger) error {
	config, err := parseArgs(args, stderr)
	if err != nil {
		return &startupError{code: exitUsage, err: err}
	}

	ln, err := net.Listen("tcp", net.JoinHostPort("", config.Port))
	if err != nil {
		return &startupError{code: exitBind, err: fmt.Errorf("failed to bind socket: %w", err)}
	}
	logger.Info("server listening", "address", ln.Addr().String(), "root", config.DocumentRoot)

	return NewServer(config, logger).Serve(ctx, ln)
}

type Server struct {
	config  Config
	logger  *slog.Logger
	metrics *metrics

	// in-flight connections
	wg sync.WaitGroup
}

func NewServer(config Config, logger *slog.Logger) *Server {
	return &Server{
		config:  config,
		logger:  logger,
		metrics: newMetrics(),
	}
}

// Serve accepts connections on ln until ctx is done, handling each one in its
// own goroutine. It closes ln and waits for in-flight connections before
// returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		ln.Close()
		return nil
	})

	if s.config.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics.handler())
		metricsServer := &http.Server{
			Addr:              s.config.MetricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			s.logger.Info("metrics listening", "address", s.config.MetricsAddress)
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return metricsServer.Shutdown(context.Background())
		})
	}

	g.Go(func() error {
		// A listener closed from elsewhere also stops the metrics server
		defer cancel()
		return s.acceptLoop(ln)
	})

	err := g.Wait()
	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept failed", "error", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	// Close exactly once, whatever happens below
	defer conn.Close()

	start := time.Now()
	s.metrics.activeConnections.Inc()
	defer func() {
		s.metrics.activeConnections.Dec()
		s.metrics.requestDuration.Observe(time.Since(start).Seconds())
	}()

	if s.config.Timeout > 0 {
		conn.SetDeadline(start.Add(s.config.Timeout))
	}

	reader := bufio.NewReaderSize(conn, maxRequestLine)

	request, response, err := s.respond(reader)
	if errors.Is(err, errNoRequest) {
		// Nothing to answer
		return
	}
	if err != nil {
		var requestErr *RequestError
		if errors.As(err, &requestErr) {
			response = errorResponse(requestErr.Status, requestErr.Message)
		} else {
			response = errorResponse(500, "Internal server error")
		}
	}

	written, sendErr := writeResponse(conn, response)
	s.metrics.observeResponse(response.Status, written)

	// Access log
	attrs := []any{
		"status", response.Status,
		"method", request.Method,
		"path", request.RawPath,
		"remote", remoteAddr(conn),
		"bytes", written,
		"duration", time.Since(start),
	}
	switch {
	case sendErr != nil:
		// Once the header is out there is no way to report this to the client
		s.metrics.sendFailures.Inc()
		s.logger.Warn("response not fully sent", append(attrs, "error", sendErr)...)
	case err != nil && response.Status >= 500:
		s.logger.Error("request failed", append(attrs, "error", err)...)
	case err != nil:
		s.logger.Info("request rejected", append(attrs, "error", err)...)
	default:
		s.logger.Info("request", attrs...)
	}
}

// respond runs one request through parsing, path resolution and loading.
// The returned Request is filled in as far as parsing got.
func (s *Server) respond(reader *bufio.Reader) (Request, Response, error) {
	requestLine, err := readRequestLine(reader)
	if err != nil {
		return Request{}, Response{}, err
	}

	request, err := parseRequest(requestLine)
	if err != nil {
		return request, Response{}, err
	}

	path, err := resolvePath(s.config.DocumentRoot, request.RawPath)
	if err != nil {
		return request, Response{}, err
	}

	content, err := loadFile(path)
	if err != nil {
		// The path passed containment already, so any failure here is a 404
		return request, Response{}, requestError(404, "File not found", err)
	}

	return request, Response{
		Status:      200,
		ContentType: contentType(path),
		Body:        content,
	}, nil
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
