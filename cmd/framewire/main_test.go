package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/framewire/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context, args ...string) (string, error) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return strconv.Itoa(port)
}

func TestVersionCommand(t *testing.T) {
	testlog.Start(t)
	out, err := run(context.Background(), "version")
	require.NoError(t, err)
	require.Contains(t, out, "framewire dev")
}

func TestConfigInitThenValidate(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "framewire.yaml")
	out, err := run(context.Background(), "config", "init", path)
	require.NoError(t, err)
	require.Contains(t, out, path)

	out, err = run(context.Background(), "config", "validate", path)
	require.NoError(t, err)
	require.Contains(t, out, "validated server config")
}

func TestUnknownKindIsRejected(t *testing.T) {
	testlog.Start(t)
	_, err := run(context.Background(), "client", "--kind", "matrix", "--value", "1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown kind")
}

func TestServerClientEcho(t *testing.T) {
	testlog.Start(t)
	port := freePort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	common := []string{"--port", port, "--token-start", "start", "--token-end", "end"}
	var serverOut, clientOut string
	var g errgroup.Group
	g.Go(func() error {
		var err error
		serverOut, err = run(ctx, append([]string{"server", "--kind", "float-list"}, common...)...)
		return err
	})
	g.Go(func() error {
		var err error
		args := append([]string{"client", "--kind", "float-list", "--value", "[0.0, 0.25, 0.5, 0.75]",
			"--count", "3", "--retry", "--retry-interval", "20ms"}, common...)
		clientOut, err = run(ctx, args...)
		return err
	})
	require.NoError(t, g.Wait())

	lines := strings.Split(strings.TrimSpace(clientOut), "\n")
	require.Equal(t, []string{
		"[0.0, 0.25, 0.5, 0.75]",
		"[0.0, 0.25, 0.5, 0.75]",
		"[0.0, 0.25, 0.5, 0.75]",
	}, lines)
	require.Contains(t, serverOut, "echoed 3 value(s)")
}

func TestServerAddressInUseFailsFast(t *testing.T) {
	testlog.Start(t)
	busy, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()
	port := strconv.Itoa(busy.Addr().(*net.TCPAddr).Port)

	_, err = run(context.Background(), "server", "--port", port)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bind")

	var stderr bytes.Buffer
	report(&stderr, err)
	lines := strings.Split(strings.TrimSpace(stderr.String()), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "framewire: "), lines[0])
	require.True(t, strings.HasPrefix(lines[1], "hint: "), lines[1])
	require.Contains(t, lines[1], "enable retry")
}

func TestReportOmitsHintForOtherErrors(t *testing.T) {
	var stderr bytes.Buffer
	report(&stderr, errors.New("unknown kind \"matrix\""))
	require.Equal(t, "framewire: unknown kind \"matrix\"\n", stderr.String())
}
