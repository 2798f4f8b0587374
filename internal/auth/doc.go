// Package auth issues and validates the bearer tokens accepted by the
// vhtoggle control API.
//
// Tokens are HS256 JWTs signed with api.jwt_secret. Each token carries a
// scope: "read" tokens may query state and history, "control" tokens may
// also request a toggle. There is no user database; tokens are minted
// locally with `vhtoggle token`.
package auth
