// Package session provides in-memory session management for the localization
// server.
//
// Core Types:
//
// Manager is the session store. Each service.Session owns one engine instance
// along with its configuration, creation time and last access time.
//
// Session Identifiers:
//
// Generated IDs are 4 hex characters drawn from crypto/rand and retried on
// collision. Lookups are case-insensitive.
//
// Concurrency:
//
// The manager is safe for concurrent use. GetOrCreate is atomic, so two
// callers racing on the same ID end up with the same session.
//
// Usage:
//
//	manager := session.NewManager()
//
//	sess, err := manager.Create("", config)
//	if err != nil {
//		return err
//	}
//
//	sess, err = manager.Get(sess.ID)
//
// Cleanup:
//
// CleanupExpiredSessions drops sessions idle longer than a given age.
// RunCleanup does so on a ticker until its context is canceled.
package session
