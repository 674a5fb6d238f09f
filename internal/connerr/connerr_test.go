package connerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name      string
		err       *Error
		wantKind  Kind
		wantRetry bool
	}{
		{"network", Network(cause), KindNetwork, true},
		{"websocket", WebSocket(cause), KindWebSocket, true},
		{"authentication", Authentication(cause), KindAuthentication, false},
		{"timeout", Timeout(cause), KindTimeout, true},
		{"validation", Validation(cause), KindValidation, false},
		{"no active connection", NoActiveConnection(), KindNoActiveConnection, true},
		{"destroyed", Destroyed(), KindDestroyed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", tt.err.Kind, tt.wantKind)
			}
			if tt.err.Retryable != tt.wantRetry {
				t.Errorf("Retryable = %v, want %v", tt.err.Retryable, tt.wantRetry)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Network(cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}

	wrapped := fmt.Errorf("connect: %w", err)
	var ce *Error
	if !errors.As(wrapped, &ce) {
		t.Fatal("expected errors.As to find *Error through wrapping")
	}
	if ce.Kind != KindNetwork {
		t.Errorf("Kind = %q, want %q", ce.Kind, KindNetwork)
	}
}

func TestFromStatusCode(t *testing.T) {
	tests := []struct {
		code      int
		wantKind  Kind
		wantRetry bool
	}{
		{http.StatusUnauthorized, KindAuthentication, false},
		{http.StatusForbidden, KindAuthentication, false},
		{http.StatusRequestTimeout, KindTimeout, true},
		{http.StatusTooManyRequests, KindNetwork, true},
		{http.StatusInternalServerError, KindNetwork, true},
		{http.StatusBadGateway, KindNetwork, true},
		{http.StatusNotFound, KindNetwork, false},
		{http.StatusBadRequest, KindNetwork, false},
	}

	for _, tt := range tests {
		err := FromStatusCode(tt.code)
		if err.Kind != tt.wantKind {
			t.Errorf("FromStatusCode(%d).Kind = %q, want %q", tt.code, err.Kind, tt.wantKind)
		}
		if err.Retryable != tt.wantRetry {
			t.Errorf("FromStatusCode(%d).Retryable = %v, want %v", tt.code, err.Retryable, tt.wantRetry)
		}
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(Timeout(errors.New("deadline"))); got != KindTimeout {
		t.Errorf("KindOf = %q, want %q", got, KindTimeout)
	}
	if got := KindOf(errors.New("plain")); got != KindNetwork {
		t.Errorf("KindOf(plain) = %q, want %q", got, KindNetwork)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(Network(errors.New("refused"))) {
		t.Error("network errors should be retryable")
	}
	if IsRetryable(Authentication(errors.New("bad token"))) {
		t.Error("authentication errors must never be retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("unclassified errors default to non-retryable")
	}
}
