// Package service provides the business logic layer for the localization server.
//
// The service package implements:
//   - Multi-session engine management
//   - Configuration loading through a ConfigManager
//   - Single and bulk filter steps
//   - Restarts with an optional new number of colors
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// ConfigManager manages engine configuration loading and validation.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the engine. Each session owns its own engine instance. A service-wide
// RWMutex serializes mutations so readers always see a committed generation.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("configs")
//	svc := service.NewGameService(sessionMgr, configMgr)
//
//	info, err := svc.CreateSession(ctx, "default")
//	if err != nil {
//		log.Fatal().Err(err).Msg("create session")
//	}
//
//	result, err := svc.Step(ctx, info.ID)
//
// Default Session:
//
// The session ID "default" is created from the default configuration the first
// time it is used. The flat, single-board HTTP routes operate on it.
package service
