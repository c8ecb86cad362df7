// Package api provides HTTP REST API handlers for the grid localization service.
//
// The api package implements:
//   - Session endpoints for creating, listing and deleting games
//   - Simulation endpoints that step the vehicle and update the posterior
//   - Read endpoints for the board, probability field and estimate
//   - A PNG heatmap of the probability field
//   - The flat single-board routes acting on the "default" session
//   - WebSocket upgrade handling
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create new session ({"config_id": "noisy"})
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=n)
//   - GET /api/sessions/{id} - Get session with snapshot and estimate
//   - DELETE /api/sessions/{id} - Delete session
//
// State:
//   - GET /api/sessions/{id}/snapshot
//   - GET /api/sessions/{id}/board
//   - GET /api/sessions/{id}/probability
//   - GET /api/sessions/{id}/probability.png (?hide_vehicle=true)
//   - GET /api/sessions/{id}/vehicle
//   - GET /api/sessions/{id}/estimate
//
// Simulation:
//   - POST /api/sessions/{id}/step
//   - POST /api/sessions/{id}/bulk-step ({"steps": 25}, capped at 100)
//   - POST /api/sessions/{id}/restart ({"num_colors": 6} or ?num_colors=6)
//
// Palette and configuration:
//   - GET /api/colormap?num_colors=n
//   - GET /api/configs, POST /api/configs, GET /api/configs/{name}
//
// Single board:
//   - GET /vehicle_position, GET /get_board, GET /get_probability
//   - GET /get_colormap?num_colors=n
//   - POST /move
//   - POST /restart?num_colors=n
//
// Error Handling:
//
// Errors are returned as JSON with appropriate HTTP status codes:
//
//	{
//	  "error": "error message",
//	  "code": 422
//	}
//
// Unknown sessions and configs are 404, malformed requests 400, and a
// num_colors outside [4, 8] is 422.
package api
