// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package relay forwards snapshot lines to a remote collector over SSH.
package relay

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/ffutop/renogy-monitor/internal/config"
	"github.com/ffutop/renogy-monitor/internal/solar"
)

const defaultTimeout = 30 * time.Second

// Client runs the collector command on the remote host and writes one line
// to its standard input per snapshot.
type Client struct {
	addr    string
	command string
	timeout time.Duration
	config  *ssh.ClientConfig
}

// NewClient loads the private key and the known hosts named in cfg. Both
// default to the files under ~/.ssh.
func NewClient(cfg config.RelayConfig) (*Client, error) {
	home, _ := os.UserHomeDir()
	keyFile := cfg.KeyFile
	if keyFile == "" {
		keyFile = filepath.Join(home, ".ssh", "id_ed25519")
	}
	knownHosts := cfg.KnownHosts
	if knownHosts == "" {
		knownHosts = filepath.Join(home, ".ssh", "known_hosts")
	}

	pem, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ssh key %s: %w", keyFile, err)
	}
	hostKeys, err := knownhosts.New(knownHosts)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts: %w", err)
	}

	user := cfg.User
	if user == "" {
		user = os.Getenv("USER")
	}
	port := cfg.Port
	if port == 0 {
		port = 22
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		command: cfg.Command,
		timeout: timeout,
		config: &ssh.ClientConfig{
			User:            user,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: hostKeys,
			Timeout:         timeout,
		},
	}, nil
}

// Send delivers line, which must end in a newline, to the remote command.
// It fails if the command exits with a non-zero status.
func (c *Client) Send(ctx context.Context, line string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, c.addr, c.config)
	if err != nil {
		conn.Close()
		return fmt.Errorf("ssh handshake with %s failed: %w", c.addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to open ssh session: %w", err)
	}
	defer session.Close()

	var stderr bytes.Buffer
	session.Stdin = strings.NewReader(line)
	session.Stderr = &stderr
	slog.Debug("Relaying snapshot", "addr", c.addr, "command", c.command)
	if err := session.Run(c.command); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("remote %q failed: %w: %s", c.command, err, msg)
		}
		return fmt.Errorf("remote %q failed: %w", c.command, err)
	}
	return nil
}

// Store sends s as a CSV line.
func (c *Client) Store(ctx context.Context, s solar.Snapshot) error {
	return c.Send(ctx, solar.FormatCSV(s))
}

func (c *Client) Close() error {
	return nil
}
