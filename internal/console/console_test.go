// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ffutop/renogy-monitor/internal/config"
	"github.com/ffutop/renogy-monitor/internal/device"
	"github.com/ffutop/renogy-monitor/internal/simulator"
)

func run(t *testing.T, station byte, script string) (string, *simulator.Controller) {
	t.Helper()
	controller := simulator.NewRenogy(1)
	dev := device.New(device.Simulated(controller, 9600), config.SerialConfig{Station: station, Timeout: 20 * time.Millisecond})
	var out bytes.Buffer
	if err := New(dev, strings.NewReader(script), &out).Run(context.Background()); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	return out.String(), controller
}

func TestConsoleRead(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"HexDump", "read 0x100 2\n", "0057 0084 \n"},
		{"Decimal", "read 256 1\n", "0057 \n"},
		{"DefaultAddress", "read\n", "0057 \n"},
		{"CaseInsensitive", "READ 0x101\n", "0084 \n"},
		{"History", "read 0xF001 3\n", "0079 008D 0193 00CA 038E 0131 0010 0009 00CC 0066 \n"},
		{"ASCII", "readc 0x0C 8\n", "    R N G - C T R L - R V R 4 0 \n"},
		{"ASCIIUnprintable", "readc 0x100 1\n", ". W \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := run(t, 1, tt.script)
			if !strings.Contains(out, "> "+tt.want) {
				t.Errorf("output %q does not contain %q", out, tt.want)
			}
		})
	}
}

func TestConsoleWrite(t *testing.T) {
	out, controller := run(t, 1, "write 0x10 5 0x0600\nread 0x10 2\n")
	if !strings.Contains(out, "wrote 2 registers\n") {
		t.Errorf("output %q lacks the write count", out)
	}
	if !strings.Contains(out, "0005 0600 \n") {
		t.Errorf("output %q lacks the written values", out)
	}
	got, _ := controller.Model().ReadHoldingRegisters(0x10, 2)
	if diff := cmp.Diff([]uint16{5, 0x600}, got); diff != "" {
		t.Errorf("registers mismatch (-want +got):\n%s", diff)
	}
}

func TestConsoleUsageErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"BadAddress", "read zz\n", `bad number "zz"`},
		{"AddressTooLarge", "read 0x10000\n", "outside 0..65535"},
		{"CountTooLarge", "read 0x100 126\n", "outside 1..125"},
		{"WriteWithoutValues", "write 0x10\n", "write address value..."},
		{"UnterminatedQuote", "read \"0x100\n", "error: "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := run(t, 1, tt.script)
			if !strings.Contains(out, tt.want) {
				t.Errorf("output %q does not contain %q", out, tt.want)
			}
		})
	}
}

func TestConsoleHelp(t *testing.T) {
	out, _ := run(t, 1, "frobnicate\n")
	if !strings.Contains(out, "readc address [count]") {
		t.Errorf("output %q lacks the help text", out)
	}
}

func TestConsoleQuit(t *testing.T) {
	out, controller := run(t, 1, "quit\nwrite 0x10 9\n")
	if strings.Contains(out, "wrote") {
		t.Error("command after quit was run")
	}
	got, _ := controller.Model().ReadHoldingRegisters(0x10, 1)
	if got[0] == 9 {
		t.Error("register written after quit")
	}
}

func TestConsoleDeviceError(t *testing.T) {
	out, _ := run(t, 5, "read 0x100\nread 0x101\n")
	if n := strings.Count(out, "error: "); n != 2 {
		t.Errorf("output %q reports %d errors, want 2", out, n)
	}
	if !strings.Contains(out, "no response") {
		t.Errorf("output %q lacks the cause", out)
	}
}
