// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package console implements an interactive register console for poking at
// the charge controller.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/shlex"
	"github.com/spf13/cast"

	"github.com/ffutop/renogy-monitor/internal/solar"
	rtupacket "github.com/ffutop/renogy-monitor/modbus/rtu"
	"github.com/ffutop/renogy-monitor/transport"
)

const (
	prompt         = "> "
	defaultAddress = 0x100
)

// errUsage marks errors caused by the command line rather than the device.
var errUsage = errors.New("usage")

// Runner runs a job against the controller registers.
type Runner interface {
	Do(ctx context.Context, fn func(ctx context.Context, regs transport.Registers) error) error
}

// Console reads commands from in and writes results to out.
type Console struct {
	dev Runner
	in  io.Reader
	out io.Writer
}

func New(dev Runner, in io.Reader, out io.Writer) *Console {
	return &Console{dev: dev, in: in, out: out}
}

// Run executes commands until quit, end of input or ctx is cancelled.
// Failed commands are reported on out and do not end the loop.
func (c *Console) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(c.in)
	fmt.Fprint(c.out, prompt)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		args, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		} else if len(args) > 0 {
			quit, err := c.Exec(ctx, args)
			if quit {
				return nil
			}
			if errors.Is(err, errUsage) {
				fmt.Fprintf(c.out, "error: %v\n", err)
				c.help()
			} else if err != nil {
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
		}
		fmt.Fprint(c.out, prompt)
	}
	fmt.Fprintln(c.out)
	return scanner.Err()
}

// Exec runs a single command. It reports quit for the quit command.
func (c *Console) Exec(ctx context.Context, args []string) (quit bool, err error) {
	switch strings.ToLower(args[0]) {
	case "read":
		return false, c.read(ctx, args[1:], false)
	case "readc":
		return false, c.read(ctx, args[1:], true)
	case "write":
		return false, c.write(ctx, args[1:])
	case "quit", "exit":
		return true, nil
	default:
		c.help()
		return false, nil
	}
}

func (c *Console) read(ctx context.Context, args []string, ascii bool) error {
	address, count := defaultAddress, 1
	var err error
	if len(args) > 0 {
		if address, err = parse(args[0], 0, 0xFFFF); err != nil {
			return err
		}
	}
	if len(args) > 1 {
		if count, err = parse(args[1], 1, rtupacket.MaxReadCount); err != nil {
			return err
		}
	}

	var values []uint16
	err = c.dev.Do(ctx, func(ctx context.Context, regs transport.Registers) error {
		var err error
		if address >= solar.RegHistoryBase {
			values, err = transport.ReadDeclared(ctx, regs, uint16(address), uint16(count))
			return err
		}
		values, err = regs.Read(ctx, uint16(address), uint16(count))
		return err
	})
	if err != nil {
		return err
	}
	// Every history address answers with a full day whatever the count.
	if address >= solar.RegHistoryBase && len(values) > solar.HistoryWords {
		values = values[:solar.HistoryWords]
	}
	c.dump(values, ascii)
	return nil
}

func (c *Console) write(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: write address value...", errUsage)
	}
	address, err := parse(args[0], 0, 0xFFFF)
	if err != nil {
		return err
	}
	if len(args)-1 > rtupacket.MaxWriteCount {
		return fmt.Errorf("%w: at most %d values", errUsage, rtupacket.MaxWriteCount)
	}
	values := make([]uint16, len(args)-1)
	for i, arg := range args[1:] {
		v, err := parse(arg, 0, 0xFFFF)
		if err != nil {
			return err
		}
		values[i] = uint16(v)
	}

	var n int
	err = c.dev.Do(ctx, func(ctx context.Context, regs transport.Registers) error {
		var err error
		n, err = regs.Write(ctx, uint16(address), values)
		return err
	})
	if err != nil {
		return err
	}
	if n < len(values) {
		fmt.Fprintf(c.out, "partial write: %d of %d registers\n", n, len(values))
		return nil
	}
	fmt.Fprintf(c.out, "wrote %d registers\n", n)
	return nil
}

// dump prints values as hex words, or as characters high byte first.
func (c *Console) dump(values []uint16, ascii bool) {
	var b strings.Builder
	for _, v := range values {
		if ascii {
			b.WriteByte(printable(byte(v >> 8)))
			b.WriteByte(' ')
			b.WriteByte(printable(byte(v)))
			b.WriteByte(' ')
		} else {
			fmt.Fprintf(&b, "%04X ", v)
		}
	}
	fmt.Fprintln(c.out, b.String())
}

func printable(c byte) byte {
	if c < 0x20 || c > 0x7E {
		return '.'
	}
	return c
}

func (c *Console) help() {
	fmt.Fprint(c.out, `read address [count]
	dump as hex
readc address [count]
	dump as ASCII chars if possible
write address value...
quit
`)
}

// parse reads a decimal, 0x hex or 0 octal number within min..max.
func parse(s string, min, max int) (int, error) {
	v, err := cast.ToIntE(s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad number %q", errUsage, s)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%w: %s outside %d..%d", errUsage, s, min, max)
	}
	return v, nil
}
