// Package mcp provides a Model Context Protocol server for the grid
// localization service.
//
// The server is a thin client: every tool proxies to the REST API, so the
// same sessions are visible over HTTP, WebSocket and MCP.
//
// MCP Tools:
//   - create_session, list_sessions, get_session, delete_session
//   - snapshot: board, probability field and last sensor reading
//   - estimate: argmax cell, its probability and the field entropy
//   - step: one move, one reading, one filter update
//   - bulk_step: up to 100 steps in one call
//   - restart: fresh board, optionally with a new color count
//   - colormap: color indices, names and RGB values
//   - list_configs: configurations found in the config directory
//   - instructions: how the simulation and filter work
//
// Tools that accept session_id fall back to the "default" session.
//
// Transport Modes:
//   - Stdio: the stdio-mcp command serves GetMCPServer over stdin/stdout
//   - HTTP: the server command mounts a streamable HTTP handler at /mcp
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
