// Package auth implements the access gate in front of the request
// handlers: no authentication, static bearer token, or a shared secret
// exchanged for database-backed sessions.
package auth
