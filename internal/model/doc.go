// Package model defines the value types shared across the connectivity
// layer: messages, connection status, and statistics snapshots.
//
// All types are plain values. Consumers receive copies and never mutate
// shared state through them.
package model
