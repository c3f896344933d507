// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package web serves the charge controller status page.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ffutop/renogy-monitor/internal/persistence"
	"github.com/ffutop/renogy-monitor/internal/solar"
	"github.com/ffutop/renogy-monitor/transport"
)

const (
	defaultFirstDay = 0
	defaultLastDay  = 10

	shutdownTimeout = 5 * time.Second
)

// Runner runs a job against the controller registers.
type Runner interface {
	Do(ctx context.Context, fn func(ctx context.Context, regs transport.Registers) error) error
}

// LatestSnapshot returns the most recent stored snapshot.
type LatestSnapshot interface {
	Latest() (solar.Snapshot, error)
}

// Handler serves the status pages. Every page request reads the
// controller.
type Handler struct {
	dev    Runner
	latest LatestSnapshot
	mux    *http.ServeMux
}

// NewHandler creates a Handler. latest may be nil, in which case
// /snapshot.json is not served.
func NewHandler(dev Runner, latest LatestSnapshot) *Handler {
	h := &Handler{dev: dev, latest: latest, mux: http.NewServeMux()}
	h.mux.HandleFunc("/", h.status)
	h.mux.HandleFunc("/history", h.history)
	if latest != nil {
		h.mux.HandleFunc("/snapshot.json", h.snapshot)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slog.Debug("HTTP request", "method", r.Method, "uri", r.RequestURI, "remote", r.RemoteAddr)
	h.mux.ServeHTTP(w, r)
}

type page struct {
	Title   string
	Info    solar.Info
	History []solar.History
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	// "/" also matches every unregistered path.
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	var p page
	p.Title = "Solar Panel Status"
	err := h.dev.Do(r.Context(), func(ctx context.Context, regs transport.Registers) error {
		var err error
		p.Info, err = solar.ReadInfo(ctx, regs)
		return err
	})
	if err != nil {
		h.commError(w, err)
		return
	}
	render(w, http.StatusOK, "status", p)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	day1, day2 := parseDays(r)
	p := page{Title: "Solar History Status"}
	err := h.dev.Do(r.Context(), func(ctx context.Context, regs transport.Registers) error {
		var err error
		if p.Info, err = solar.ReadInfo(ctx, regs); err != nil {
			return err
		}
		p.History, err = solar.ReadHistory(ctx, regs, day1, day2)
		return err
	})
	switch {
	case errors.Is(err, solar.ErrDayRange):
		render(w, http.StatusBadRequest, "error", err.Error())
	case err != nil:
		h.commError(w, err)
	default:
		render(w, http.StatusOK, "history", p)
	}
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	s, err := h.latest.Latest()
	if errors.Is(err, persistence.ErrNoSnapshot) {
		http.Error(w, "no snapshot", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Failed to read latest snapshot", "err", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

func (h *Handler) commError(w http.ResponseWriter, err error) {
	slog.Error("Failed to read controller", "err", err)
	render(w, http.StatusServiceUnavailable, "error", "communication error")
}

func render(w http.ResponseWriter, code int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("Failed to render page", "page", name, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	w.Write(buf.Bytes())
}

// parseDays reads the day range from either ?from=N&to=M or the bare
// ?N,M form. Missing values default to 0 and 10; a last day before the
// first is raised to the first.
func parseDays(r *http.Request) (int, int) {
	day1, day2 := defaultFirstDay, defaultLastDay
	q := r.URL.Query()
	if q.Has("from") || q.Has("to") {
		if v := q.Get("from"); v != "" {
			day1 = atoi(v)
		}
		if v := q.Get("to"); v != "" {
			day2 = atoi(v)
		}
	} else if raw, err := url.QueryUnescape(r.URL.RawQuery); err == nil && raw != "" {
		fields := strings.FieldsFunc(raw, func(c rune) bool {
			return c == ',' || c == ' '
		})
		if len(fields) > 0 {
			day1 = atoi(fields[0])
		}
		if len(fields) > 1 {
			day2 = atoi(fields[1])
		}
	}
	if day2 < day1 {
		day2 = day1
	}
	return day1, day2
}

// atoi parses the leading decimal digits of s, like C's atoi.
func atoi(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}

// ListenAndServe serves handler on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Web server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
