// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package auth guards the administrative API.

Confirmation approvals and manual recovery change enforcement state, so those
routes require an HS256 bearer token carrying the admin role:

	Authorization: Bearer <jwt>

Tokens are issued offline with the server binary (riskguard -issue-admin-token
<name>) using server.jwt_secret. When no secret is configured the admin routes
answer 503 and nothing else is affected.

Key Components:

  - JWTManager: token generation and validation
  - Middleware: chi-compatible Authenticate and RequireRole handlers
  - ClaimsFromContext: the authenticated operator for audit fields
*/
package auth
