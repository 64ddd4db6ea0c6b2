// Package session holds the authenticated state shared by every request to the Kia Owners
// portal.
//
// A [Session] bundles the cookies returned by a successful login with the capability key of each
// vehicle on the account. Capability keys are only meaningful within the session that issued
// them, so a Session is never modified after it is built: a new login produces a new Session
// which atomically replaces the old one in the [Store]. Callers must read keys from
// [Store.Current] at the moment they build a request rather than holding on to a Session across
// blocking calls.
//
// Freshness is a client-side heuristic. The portal may invalidate a session earlier than
// [DefaultMaxAge]; in that case [Store.Invalidate] drops it so the next request logs in again.
package session
