package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/response"
	"github.com/Brownie44l1/rawhttp/internal/router"
	"github.com/Brownie44l1/rawhttp/internal/server"
)

func main() {
	config := server.DefaultConfig()

	port := flag.Int("port", envInt("RAWHTTP_PORT", config.Port), "port to listen on")
	workers := flag.Int("workers", envInt("RAWHTTP_WORKERS", config.Workers), "number of worker goroutines")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	grace := flag.Duration("shutdown-timeout", 30*time.Second, "how long to wait for in-flight requests on shutdown")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level %q: %v\n", *logLevel, err)
		os.Exit(2)
	}
	log.SetLevel(level)

	config.Port = *port
	config.Workers = *workers
	config.Logger = server.NewLogger(log)

	var srv *server.Server
	r := newRouter(config.Logger, func() server.MetricsSnapshot { return srv.Stats() })

	srv, err = server.New(config, r)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	if err := srv.Listen(); err != nil {
		log.WithError(err).Fatal("cannot listen")
	}
	printBanner(srv, config, r)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx) }()

	select {
	case err := <-errc:
		if err != nil {
			log.WithError(err).Fatal("server error")
		}
		return
	case <-ctx.Done():
	}

	color.Yellow("\nShutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), *grace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, server.ErrServerClosed) {
		log.WithError(err).Error("shutdown did not complete")
		os.Exit(1)
	}

	stats := srv.Stats()
	color.Cyan("Final stats:")
	fmt.Printf("   Total requests:   %d\n", stats.RequestsTotal)
	fmt.Printf("   Connections:      %d\n", stats.ConnectionsTotal)
	fmt.Printf("   4xx / 5xx:        %d / %d\n", stats.Errors4xx, stats.Errors5xx)
	fmt.Printf("   Average latency:  %s\n", stats.AverageLatency)
	color.Green("Server stopped gracefully")
}

func newRouter(logger server.Logger, snapshot func() server.MetricsSnapshot) *router.Router {
	r := router.New()
	r.Use(
		server.RecoveryMiddleware(logger),
		server.RequestIDMiddleware(),
		server.LoggingMiddleware(logger),
	)

	r.GET("/", handleHome)
	r.GET("/about", func(_ []string, _ *request.Request, res *response.Response) error {
		res.Text(response.StatusOK, "rawhttp: an HTTP/1.1 server on raw sockets\n")
		return nil
	})
	r.GET(`/hello/(\w+)`, func(captures []string, _ *request.Request, res *response.Response) error {
		res.Text(response.StatusOK, fmt.Sprintf("Hello, %s!\n", captures[0]))
		return nil
	})
	r.POST("/echo", func(_ []string, req *request.Request, res *response.Response) error {
		contentType, ok := req.Header("Content-Type")
		if !ok {
			contentType = "application/octet-stream"
		}
		res.Data(response.StatusOK, contentType, req.Body())
		return nil
	})
	r.GET("/metrics", func(_ []string, _ *request.Request, res *response.Response) error {
		return res.JSON(response.StatusOK, snapshot())
	})
	return r
}

func handleHome(_ []string, _ *request.Request, res *response.Response) error {
	html := `<!DOCTYPE html>
<html>
<head><title>rawhttp</title></head>
<body>
	<h1>rawhttp</h1>
	<ul>
		<li><a href="/about">About</a></li>
		<li><a href="/hello/world">Hello</a></li>
		<li><a href="/metrics">Metrics</a></li>
	</ul>
</body>
</html>`

	res.HTML(response.StatusOK, html)
	return nil
}

func printBanner(srv *server.Server, config server.Config, r *router.Router) {
	bold := color.New(color.FgHiWhite, color.Bold)
	method := color.New(color.FgGreen).SprintfFunc()

	bold.Printf("rawhttp listening on %s\n", srv.Addr())
	fmt.Printf("   workers: %d\n", config.Workers)
	color.Cyan("Routes:")
	for _, rt := range r.Routes() {
		fmt.Printf("   %s %s\n", method("%-7s", rt.Method), rt.Source())
	}
}

// envInt returns the integer in env var key, or def when unset or invalid.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
