// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ffutop/renogy-monitor/internal/config"
	"github.com/ffutop/renogy-monitor/internal/device"
	"github.com/ffutop/renogy-monitor/internal/persistence"
	"github.com/ffutop/renogy-monitor/internal/simulator"
	"github.com/ffutop/renogy-monitor/internal/solar"
	"github.com/ffutop/renogy-monitor/transport"
)

func newHandler(t *testing.T, station byte, latest LatestSnapshot) *Handler {
	t.Helper()
	dev := device.New(device.Simulated(simulator.NewRenogy(1), 9600), config.SerialConfig{
		Station: station,
		Timeout: 20 * time.Millisecond,
	})
	return NewHandler(dev, latest)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestStatusPage(t *testing.T) {
	rec := get(t, newHandler(t, 1, nil), "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<h1>Solar Panel Status</h1>",
		"Product Model: " + simulator.SampleModel,
		"<div>Array Voltage: 18.6V</div>",
		"<div>Array Current: 2.56A</div>",
		"<div>Battery Voltage: 13.2V</div>",
		"<div>State of Charge: 87%</div>",
		"<div>Charging state: MPPT</div>",
		"<div>Minimum battery voltage: 12.4V</div>",
		"<div>Total Operating Days: 412</div>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("status page lacks %q", want)
		}
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestHistoryPage(t *testing.T) {
	tests := []struct {
		target string
		days   int
		first  string
	}{
		{"/history?0,2", 3, "<td>0</td>"},
		{"/history?from=3&to=1", 1, "<td>3</td>"},
		{"/history", 11, "<td>0</td>"},
	}
	h := newHandler(t, 1, nil)
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, h, tt.target)
			if rec.Code != http.StatusOK {
				t.Fatalf("status code = %d, want %d", rec.Code, http.StatusOK)
			}
			body := rec.Body.String()
			if n := strings.Count(body, "<tr>") - 1; n != tt.days {
				t.Errorf("%d history rows, want %d", n, tt.days)
			}
			if !strings.Contains(body, "<tr>\n"+tt.first) {
				t.Errorf("history does not start with %s", tt.first)
			}
			if !strings.Contains(body, "<h1>Solar History Status</h1>") {
				t.Error("history page lacks its title")
			}
		})
	}
}

func TestHistoryRowValues(t *testing.T) {
	body := get(t, newHandler(t, 1, nil), "/history?1,1").Body.String()
	// Day 1 of the sample image: 12.1V, 14.1V, 4.03A, 2.02A, 91W, 30.5W,
	// 16Ah, 9Ah, 0.204kWh, 0.102kWh.
	want := "<td>1</td>\n<td>12.1</td>\n<td>14.1</td>\n<td>4.03</td>\n<td>2.02</td>\n<td>91</td>\n<td>30.5</td>\n<td>16</td>\n<td>9</td>\n<td>0.204</td>\n<td>0.102</td>"
	if !strings.Contains(body, want) {
		t.Errorf("history row not found in:\n%s", body)
	}
}

func TestHistoryOutOfRange(t *testing.T) {
	rec := get(t, newHandler(t, 1, nil), "/history?from=0&to=500")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCommunicationError(t *testing.T) {
	h := newHandler(t, 7, nil)
	for _, target := range []string{"/", "/history?0,1"} {
		rec := get(t, h, target)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s status code = %d, want %d", target, rec.Code, http.StatusServiceUnavailable)
		}
		if !strings.Contains(rec.Body.String(), "communication error") {
			t.Errorf("GET %s body lacks the error message", target)
		}
	}
}

func TestSnapshotJSON(t *testing.T) {
	mem := persistence.NewMemory()
	h := newHandler(t, 1, mem)

	if rec := get(t, h, "/snapshot.json"); rec.Code != http.StatusNotFound {
		t.Errorf("empty store status code = %d, want %d", rec.Code, http.StatusNotFound)
	}

	snap := solar.Snapshot{Time: time.Date(2023, 6, 1, 14, 5, 9, 0, time.UTC), SOC: 87, ArrayWatts: 47}
	mem.Store(context.Background(), snap)
	rec := get(t, h, "/snapshot.json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rec.Code, http.StatusOK)
	}
	var got solar.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotJSONDisabled(t *testing.T) {
	rec := get(t, newHandler(t, 1, nil), "/snapshot.json")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// countingRunner counts the jobs that reach the device.
type countingRunner struct {
	jobs int
}

func (c *countingRunner) Do(ctx context.Context, fn func(ctx context.Context, regs transport.Registers) error) error {
	c.jobs++
	return errors.New("device not expected")
}

func TestUnknownPathLeavesDeviceAlone(t *testing.T) {
	dev := &countingRunner{}
	h := NewHandler(dev, nil)
	for _, target := range []string{"/favicon.ico", "/robots.txt", "/status/extra"} {
		if rec := get(t, h, target); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status code = %d, want %d", target, rec.Code, http.StatusNotFound)
		}
	}
	if dev.jobs != 0 {
		t.Errorf("device opened %d times for unknown paths", dev.jobs)
	}
}

func TestParseDays(t *testing.T) {
	tests := []struct {
		query      string
		day1, day2 int
	}{
		{"", 0, 10},
		{"5", 5, 10},
		{"3,7", 3, 7},
		{"3%20,%207", 3, 7},
		{"7,3", 7, 7},
		{"from=2&to=4", 2, 4},
		{"from=12", 12, 12},
		{"to=4", 0, 4},
		{"x,y", 0, 0},
		{"12days,15", 12, 15},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/history?"+tt.query, nil)
			day1, day2 := parseDays(r)
			if day1 != tt.day1 || day2 != tt.day2 {
				t.Errorf("parseDays(%q) = %d, %d, want %d, %d", tt.query, day1, day2, tt.day1, tt.day2)
			}
		})
	}
}

func TestNum(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{13.2, "13.2"},
		{2.56, "2.56"},
		{0.204, "0.204"},
		{14, "14"},
		{0, "0"},
		{-1.5, "-1.5"},
	}
	for _, tt := range tests {
		if got := num(tt.in); got != tt.want {
			t.Errorf("num(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestListenAndServeStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ListenAndServe(ctx, "127.0.0.1:0", http.NotFoundHandler()) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe() error = %v", err)
		}
	case <-time.After(6 * time.Second):
		t.Fatal("ListenAndServe() did not stop")
	}
}
