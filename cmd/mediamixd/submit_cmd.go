// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/mediamix/internal/config"
	"github.com/ManuGH/mediamix/internal/daemon"
	xglog "github.com/ManuGH/mediamix/internal/log"
	"github.com/ManuGH/mediamix/internal/model"
	"github.com/ManuGH/mediamix/internal/version"
)

// runSubmitCLI runs one request in-process and prints its summary. It exits 1
// when the request is rejected or any unit failed.
func runSubmitCLI(args []string, stdout, stderr io.Writer, ov daemon.Overrides) int {
	fs := flag.NewFlagSet("mediamixd submit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("f", "", "request file (.json, .yaml or .yml)")
	configPath := fs.String("config", "", "path to config file (YAML)")
	timeout := fs.Duration("timeout", 0, "stop waiting after this long; 0 waits until done")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *file == "" {
		fmt.Fprintln(stderr, "Usage: mediamixd submit -f request.json [-config config.yaml] [-timeout 30m]")
		return 2
	}

	req, err := readRequest(*file)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	loader := config.NewLoader(strings.TrimSpace(*configPath), version.Version)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return 1
	}
	xglog.Configure(xglog.Config{
		Level:   cfg.Log.Level,
		Output:  stderr,
		Service: daemon.ServiceName,
		Version: cfg.Version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := daemon.Build(ctx, cfg, ov)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = comps.Close(context.Background()) }()

	sub, err := comps.Engine.Submit(ctx, req)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintln(stderr, "Request rejected:")
			for _, p := range verr.Problems {
				fmt.Fprintf(stderr, "  %s: %s\n", p.Field, p.Message)
			}
			return 1
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	waitCtx := ctx
	if *timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}
	sum, waitErr := sub.Wait(waitCtx)

	if waitErr != nil {
		// An expired context makes Shutdown cancel the remaining units.
		expired, cancel := context.WithCancel(context.Background())
		cancel()
		_ = comps.Engine.Shutdown(expired)
		fmt.Fprintf(stderr, "Error: request %s did not finish: %v\n", sub.RequestID, waitErr)
		return 1
	}
	_ = comps.Engine.Shutdown(context.Background())

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if sum.FailedCount > 0 {
		return 1
	}
	return 0
}

func readRequest(path string) (model.MediaRequest, error) {
	var req model.MediaRequest
	// #nosec G304 -- operator supplied path
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return req, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return req, fmt.Errorf("%s: %w", path, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&req); err != nil {
			return req, fmt.Errorf("%s: %w", path, err)
		}
	default:
		return req, fmt.Errorf("%s: unsupported request format (use .json, .yaml or .yml)", path)
	}
	return req, nil
}
