// Package transport defines the closed Transport interface and its two
// implementations: WebSocket (push) and HTTP polling (pull).
//
// Transports move raw bytes only; message semantics, validation, routing,
// and reconnection all live with the manager that owns them. At most one
// transport is connected at a time, enforced by the manager.
package transport
