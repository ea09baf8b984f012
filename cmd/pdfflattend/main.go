// pdfflattend - HTTP service flattening one PDF at a time
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/novvoo/go-flatten/internal/logging"
	"github.com/novvoo/go-flatten/pkg/flatten"
	"github.com/novvoo/go-flatten/pkg/pdf"
	"github.com/novvoo/go-flatten/pkg/server"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	maxSize := flag.Int64("max-size", server.DefaultMaxSize, "largest accepted document in bytes")
	scale := flag.Float64("scale", pdf.DefaultScale, "raster pixels per PDF unit")
	backend := flag.String("backend", flatten.BackendNative, "rasterizer: native or mupdf")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", false, "log as JSON lines")
	lenient := flag.Bool("lenient", false, "flatten pages with content the renderer cannot draw, leaving it blank")
	var fonts []string
	flag.Func("font", "TrueType file searched for characters missing from the built-in faces (repeatable)", func(path string) error {
		fonts = append(fonts, path)
		return nil
	})
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pdfflattend [options]\n\n")
		fmt.Fprintf(os.Stderr, "POST a PDF to /flatten; GET /ready reports readiness.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	log, err := logging.New(os.Stderr, *logLevel, *logJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfflattend: %v\n", err)
		os.Exit(2)
	}

	cfg := flatten.DefaultConfig()
	cfg.Scale = *scale
	cfg.Backend = *backend
	cfg.Lenient = *lenient
	cfg.FontFiles = fonts
	cfg.Logger = log
	svc, err := flatten.NewService(cfg)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           server.NewHandler(server.Config{Service: svc, MaxSize: *maxSize, Logger: log}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			log.Warn("shutdown", "error", err)
		}
	}()

	log.Info("listening", "addr", *addr, "max_size", *maxSize)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}
