// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

type serveCommand struct{}

func (cmd *serveCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	listen := flags.String("listen", ":8000", "`address` to listen on")
	enrichmentURL := flags.String("enrichment-url", DefaultEnrichmentURL, "g:Profiler gost/profile `url`")
	enrichmentTimeout := flags.Duration("enrichment-timeout", 30*time.Second, "timeout for each enrichment request attempt")
	enrichmentAttempts := flags.Int("enrichment-attempts", 2, "enrichment request attempts before giving up")
	maxUploadMB := flags.Int64("max-upload-mb", 256, "maximum request body size in MiB")
	requestTimeout := flags.Duration("request-timeout", 5*time.Minute, "maximum time to spend on one request")
	debug := flags.Bool("debug", false, "enable debug logging")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() > 0 {
		err = fmt.Errorf("errant command line arguments after parsed flags: %v", flags.Args())
		return 2
	} else if *maxUploadMB < 1 {
		err = errors.New("-max-upload-mb must be at least 1")
		return 2
	}
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	enricher := NewEnricher()
	enricher.URL = *enrichmentURL
	enricher.Timeout = *enrichmentTimeout
	enricher.Attempts = *enrichmentAttempts
	srv := &http.Server{
		Addr: *listen,
		Handler: &Server{
			Enricher:       enricher,
			MaxUploadBytes: *maxUploadMB << 20,
			RequestTimeout: *requestTimeout,
		},
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	done := make(chan struct{})
	stop := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	go func() {
		defer close(done)
		var sig os.Signal
		select {
		case sig = <-quit:
		case <-stop:
			return
		}
		log.Printf("received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("graceful shutdown failed")
		}
	}()

	log.Printf("listening on %s", *listen)
	err = srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		close(stop)
		<-done
		return 1
	}
	err = nil
	<-done
	log.Print("server stopped")
	return 0
}
