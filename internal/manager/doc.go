// Package manager orchestrates the connectivity layer. A Manager owns at
// most one active transport (WebSocket preferred, HTTP polling as the
// fallback), monitors its quality, reconnects with exponential backoff
// when it fails, and switches transports per the configured fallback
// policy. Subscribers observe inbound messages and status transitions
// through the Manager rather than any transport directly.
package manager
