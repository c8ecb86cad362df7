package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/grid-localization/api"
	"github.com/wricardo/grid-localization/transport/mcp"
)

func TestConstants(t *testing.T) {
	assert.Equal(t, "1.0.0", Version)
	assert.Equal(t, "Grid Localization Server", AppName)
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCommand()

	assert.Equal(t, "server", cmd.DefaultCommand)

	names := map[string]bool{}
	for _, sub := range cmd.Commands {
		names[sub.Name] = true
		for _, alias := range sub.Aliases {
			names[alias] = true
		}
	}
	for _, name := range []string{"server", "http", "stdio-mcp", "mcp-stdio", "mcp"} {
		assert.True(t, names[name], "missing command %s", name)
	}
}

func TestInitializeServices(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gameService, err := initializeServices(ctx, "configs", time.Hour, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, gameService)

	configs, err := gameService.ListConfigs(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, configs)
}

func TestInitializeServices_InvalidConfigDir(t *testing.T) {
	_, err := initializeServices(context.Background(), "/non/existent/path", time.Hour, time.Minute)
	assert.Error(t, err)
}

func TestHTTPHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gameService, err := initializeServices(ctx, "configs", 0, 0)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	baseURL := "http://" + listener.Addr().String()

	ts := httptest.NewUnstartedServer(newHTTPHandler(api.NewServer(gameService, nil), mcp.NewClient(baseURL)))
	ts.Listener.Close()
	ts.Listener = listener
	ts.Start()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/move", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	initialize := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1.0.0"}}}`
	req, err := http.NewRequest("POST", ts.URL+"/mcp", strings.NewReader(initialize))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Grid Localization")
}

func TestAPIReachable(t *testing.T) {
	ts := httptest.NewServer(api.NewServer(nil, nil))
	defer ts.Close()
	assert.True(t, apiReachable(ts.URL))

	ts.Close()
	assert.False(t, apiReachable(ts.URL))
}
