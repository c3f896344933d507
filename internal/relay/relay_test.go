// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package relay

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/ffutop/renogy-monitor/internal/config"
	"github.com/ffutop/renogy-monitor/internal/solar"
)

// collector is an SSH server that records the command and standard input
// of every exec request.
type collector struct {
	addr     *net.TCPAddr
	hostKey  ssh.Signer
	status   uint32
	commands chan string
	received chan string
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func newSigner(t *testing.T, key *ecdsa.PrivateKey) ssh.Signer {
	t.Helper()
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		t.Fatal(err)
	}
	return signer
}

func startCollector(t *testing.T, clientKey ssh.PublicKey, status uint32) *collector {
	t.Helper()
	c := &collector{
		hostKey:  newSigner(t, newKey(t)),
		status:   status,
		commands: make(chan string, 4),
		received: make(chan string, 4),
	}
	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if bytes.Equal(key.Marshal(), clientKey.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("unknown key")
		},
	}
	cfg.AddHostKey(c.hostKey)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	c.addr = ln.Addr().(*net.TCPAddr)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go c.serve(conn, cfg)
		}
	}()
	return c
}

func (c *collector) serve(conn net.Conn, cfg *ssh.ServerConfig) {
	defer conn.Close()
	_, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)
	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(ssh.UnknownChannelType, "session only")
			continue
		}
		ch, requests, err := newChan.Accept()
		if err != nil {
			return
		}
		go c.session(ch, requests)
	}
}

func (c *collector) session(ch ssh.Channel, requests <-chan *ssh.Request) {
	for req := range requests {
		if req.Type != "exec" {
			req.Reply(false, nil)
			continue
		}
		var payload struct{ Command string }
		ssh.Unmarshal(req.Payload, &payload)
		req.Reply(true, nil)
		go func() {
			data, _ := io.ReadAll(ch)
			c.commands <- payload.Command
			c.received <- string(data)
			if c.status != 0 {
				io.WriteString(ch.Stderr(), "relation \"solar\" does not exist\n")
			}
			ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{c.status}))
			ch.Close()
		}()
	}
}

// clientConfig writes the client key and a known_hosts file trusting
// hostKey and returns a RelayConfig using them.
func clientConfig(t *testing.T, key *ecdsa.PrivateKey, c *collector, hostKey ssh.PublicKey) config.RelayConfig {
	t.Helper()
	dir := t.TempDir()
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	keyFile := filepath.Join(dir, "id_ecdsa")
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), 0600); err != nil {
		t.Fatal(err)
	}
	knownHosts := filepath.Join(dir, "known_hosts")
	line := knownhosts.Line([]string{c.addr.String()}, hostKey) + "\n"
	if err := os.WriteFile(knownHosts, []byte(line), 0644); err != nil {
		t.Fatal(err)
	}
	return config.RelayConfig{
		Host:       "127.0.0.1",
		Port:       c.addr.Port,
		User:       "solar",
		KeyFile:    keyFile,
		KnownHosts: knownHosts,
		Command:    "solarrecv",
		Timeout:    5 * time.Second,
	}
}

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("collector received nothing")
		return ""
	}
}

func TestClientStore(t *testing.T) {
	key := newKey(t)
	c := startCollector(t, newSigner(t, key).PublicKey(), 0)
	client, err := NewClient(clientConfig(t, key, c, c.hostKey.PublicKey()))
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	defer client.Close()

	snap := solar.Snapshot{Time: time.Date(2023, 6, 1, 14, 5, 9, 0, time.UTC), SOC: 87, BatteryVolts: 13.2}
	if err := client.Store(context.Background(), snap); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}
	if cmd := receive(t, c.commands); cmd != "solarrecv" {
		t.Errorf("remote command = %q, want %q", cmd, "solarrecv")
	}
	if got, want := receive(t, c.received), solar.FormatCSV(snap); got != want {
		t.Errorf("remote stdin = %q, want %q", got, want)
	}
}

func TestClientRemoteFailure(t *testing.T) {
	key := newKey(t)
	c := startCollector(t, newSigner(t, key).PublicKey(), 1)
	client, err := NewClient(clientConfig(t, key, c, c.hostKey.PublicKey()))
	if err != nil {
		t.Fatal(err)
	}

	err = client.Send(context.Background(), "line\n")
	var exitErr *ssh.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitStatus() != 1 {
		t.Fatalf("Send() error = %v, want exit status 1", err)
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("Send() error %q lacks the remote message", err)
	}
}

func TestClientRejectsUnknownHostKey(t *testing.T) {
	key := newKey(t)
	c := startCollector(t, newSigner(t, key).PublicKey(), 0)
	impostor := newSigner(t, newKey(t)).PublicKey()
	client, err := NewClient(clientConfig(t, key, c, impostor))
	if err != nil {
		t.Fatal(err)
	}
	if err := client.Send(context.Background(), "line\n"); err == nil {
		t.Error("Send() trusted a host key missing from known_hosts")
	}
}

func TestNewClientMissingKey(t *testing.T) {
	_, err := NewClient(config.RelayConfig{Host: "collector", KeyFile: filepath.Join(t.TempDir(), "missing")})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("NewClient() error = %v, want %v", err, os.ErrNotExist)
	}
}
