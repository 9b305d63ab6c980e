// Package auth provides authentication for muse-gateway.
//
// # Authentication flow
//
// Accounts register with an email and password; passwords are stored as
// bcrypt hashes. Login exchanges credentials for a JWT signed with HS256
// using the configured jwt_secret, carrying the user ID in the "sub"
// claim.
//
// Authenticated requests present the token two ways:
//
//   - HTTP API: Authorization: Bearer <token>, enforced by
//     HTTPAuthMiddleware, which attaches an Identity to the request
//     context.
//   - WebSocket: a token supplied at connect time, resolved through the
//     same ResolveToken path before any session events flow.
//
// Handlers read the authenticated user with FromContext.
package auth
