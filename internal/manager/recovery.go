package manager

import (
	"github.com/beatwave/connect/internal/connerr"
	"github.com/beatwave/connect/internal/model"
)

// ActionType names a recovery step an operator or supervising layer can
// take in response to a connection error.
type ActionType string

const (
	// ActionRetry means the failed operation is safe to retry as-is.
	ActionRetry ActionType = "retry"

	// ActionForceSync means local state may have diverged while the
	// connection was degraded and should be re-synced from the server.
	ActionForceSync ActionType = "force_sync"

	// ActionFallback means switching to the target transport is likely to
	// help.
	ActionFallback ActionType = "fallback"
)

// Action is one suggested recovery step. Target is set only for
// ActionFallback.
type Action struct {
	Type   ActionType
	Target model.Strategy
}

// RecoveryActions maps a connection error to the ordered set of steps
// worth taking, given the manager's current state. It inspects state but
// never mutates it; callers decide what to act on.
func RecoveryActions(err error, m *Manager) []Action {
	if err == nil {
		return nil
	}

	var actions []Action

	if connerr.IsRetryable(err) {
		actions = append(actions, Action{Type: ActionRetry})
	}

	switch connerr.KindOf(err) {
	case connerr.KindNetwork, connerr.KindTimeout, connerr.KindWebSocket, connerr.KindNoActiveConnection:
		actions = append(actions, Action{Type: ActionForceSync})
	}

	if m != nil && m.Strategy() == model.StrategyWebSocket {
		actions = append(actions, Action{Type: ActionFallback, Target: model.StrategyPolling})
	}

	return actions
}
