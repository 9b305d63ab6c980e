// Package gateway exposes muse-gateway to clients.
//
// # Surfaces
//
// Two surfaces share one HTTP server:
//
//   - JSON API: /auth/register, /auth/login, /auth/me, and the
//     /api/conversations CRUD routes. Requests authenticate with a
//     bearer JWT; foreign conversations are indistinguishable from
//     missing ones.
//   - WebSocket: /ws, authenticated during the handshake. Clients send
//     send_message frames; the gateway streams back message_received,
//     typing_indicator, and error frames as the orchestrator processes
//     the turn.
//
// # Sessions
//
// Each websocket connection is one session, bound to its user for the
// lifetime of the connection and never persisted. The SessionHub fans
// turn events out to every live session of a user, so a second device
// sees the conversation advance in real time. Delivery is best-effort:
// slow or disconnected sessions drop events while the turn itself runs
// to completion.
package gateway
