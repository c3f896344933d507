// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package relay

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/ffutop/renogy-monitor/internal/persistence"
	"github.com/ffutop/renogy-monitor/internal/solar"
)

const line = "2023-06-01 14:05:09+00,18.6,2.56,47,87,13.20,3.45,13.20,1.20"

func TestReceive(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Newline", line + "\n"},
		{"NoNewline", line},
		{"CRLF", line + "\r\n"},
		{"TrailingGarbageLine", line + "\nsecond line\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			file := persistence.NewCSVFile(fs, "solar.csv")
			mem := persistence.NewMemory()

			snap, err := Receive(context.Background(), strings.NewReader(tt.input), file, mem)
			if err != nil {
				t.Fatalf("Receive() failed: %v", err)
			}
			data, _ := afero.ReadFile(fs, "solar.csv")
			if string(data) != line+"\n" {
				t.Errorf("csv file = %q, want %q", data, line+"\n")
			}
			if diff := cmp.Diff([]solar.Snapshot{snap}, mem.All()); diff != "" {
				t.Errorf("stored mismatch (-want +got):\n%s", diff)
			}
			if snap.SOC != 87 {
				t.Errorf("soc = %d, want 87", snap.SOC)
			}
		})
	}
}

func TestReceiveRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"Empty", "", ErrEmptyInput},
		{"BlankLine", "\n", ErrEmptyInput},
		{"Malformed", "rm -rf /\n", solar.ErrMalformedLine},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			mem := persistence.NewMemory()
			_, err := Receive(context.Background(), strings.NewReader(tt.input), persistence.NewCSVFile(fs, "solar.csv"), mem)
			if !errors.Is(err, tt.want) {
				t.Errorf("Receive() error = %v, want %v", err, tt.want)
			}
			if ok, _ := afero.Exists(fs, "solar.csv"); ok {
				t.Error("Receive() wrote a rejected line")
			}
			if len(mem.All()) != 0 {
				t.Error("Receive() stored a rejected line")
			}
		})
	}
}

func TestReceiveWithoutDestinations(t *testing.T) {
	if _, err := Receive(context.Background(), strings.NewReader(line), nil, nil); err != nil {
		t.Errorf("Receive() error = %v", err)
	}
}
