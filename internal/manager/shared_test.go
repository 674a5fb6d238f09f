package manager

import (
	"testing"
)

func TestShared_ReturnsSameInstance(t *testing.T) {
	t.Cleanup(func() { DestroyShared() })

	cfg := testConfig(unreachableWS, "http://127.0.0.1:1/poll")
	a := Shared(cfg, nil)
	b := Shared(Config{}, nil) // later arguments are ignored

	if a != b {
		t.Error("Shared returned different instances")
	}
}

func TestShared_DestroyAllowsReconfiguration(t *testing.T) {
	t.Cleanup(func() { DestroyShared() })

	cfg := testConfig(unreachableWS, "http://127.0.0.1:1/poll")
	a := Shared(cfg, nil)

	if err := DestroyShared(); err != nil {
		t.Fatalf("DestroyShared failed: %v", err)
	}

	b := Shared(cfg, nil)
	if a == b {
		t.Error("Shared returned the destroyed instance after DestroyShared")
	}
}

func TestDestroyShared_NoInstance(t *testing.T) {
	if err := DestroyShared(); err != nil {
		t.Errorf("DestroyShared with no instance = %v, want nil", err)
	}
}
