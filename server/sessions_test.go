package server

import (
	"errors"
	"testing"
	"time"

	"github.com/chazu/intcode/vm"
)

func TestSessionStore_CreateGetDestroy(t *testing.T) {
	s := NewSessionStore()
	a := s.Create(vm.New([]int64{99}))
	b := s.Create(vm.New([]int64{99}))
	if a.ID == b.ID {
		t.Error("two sessions should have different IDs")
	}

	got, ok := s.Get(a.ID)
	if !ok || got != a {
		t.Fatalf("Get(%q) = %v, %v", a.ID, got, ok)
	}
	if !s.Destroy(a.ID) {
		t.Error("Destroy should report an existing session")
	}
	if s.Destroy(a.ID) {
		t.Error("Destroy should report a missing session")
	}
	if _, ok := s.Get(a.ID); ok {
		t.Error("destroyed session should not be retrievable")
	}

	if _, err := a.worker.Do(func(e *vm.Engine) (any, error) { return nil, nil }); !errors.Is(err, errWorkerStopped) {
		t.Errorf("Do on destroyed session error = %v, want errWorkerStopped", err)
	}
	s.CloseAll()
	if s.Len() != 0 {
		t.Errorf("Len after CloseAll = %d", s.Len())
	}
}

func TestSessionStore_Sweep(t *testing.T) {
	s := NewSessionStore()
	old := s.Create(vm.New([]int64{99}))
	fresh := s.Create(vm.New([]int64{99}))

	s.mu.Lock()
	old.lastUsed = time.Now().Add(-time.Hour)
	s.mu.Unlock()

	if n := s.Sweep(time.Minute); n != 1 {
		t.Errorf("Sweep removed %d sessions, want 1", n)
	}
	if _, ok := s.Get(old.ID); ok {
		t.Error("idle session should have been swept")
	}
	if _, ok := s.Get(fresh.ID); !ok {
		t.Error("fresh session should survive")
	}
	s.CloseAll()
}

func TestSessionStore_Sweeper(t *testing.T) {
	s := NewSessionStore()
	session := s.Create(vm.New([]int64{99}))
	s.mu.Lock()
	session.lastUsed = time.Now().Add(-time.Hour)
	s.mu.Unlock()

	stop := s.StartSweeper(5*time.Millisecond, time.Minute)
	defer stop()

	deadline := time.Now().Add(5 * time.Second)
	for s.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper did not remove the idle session")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEngineWorker_RecoversPanics(t *testing.T) {
	w := NewEngineWorker(vm.New([]int64{99}))
	defer w.Stop()

	_, err := w.Do(func(e *vm.Engine) (any, error) { panic("boom") })
	if err == nil || err.Error() != "boom" {
		t.Errorf("Do error = %v, want boom", err)
	}

	v, err := w.Do(func(e *vm.Engine) (any, error) { return e.Steps(), nil })
	if err != nil || v.(int64) != 0 {
		t.Errorf("Do after panic = %v, %v", v, err)
	}
	w.Stop()
	w.Stop()
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("INTCODE_ADDR", ":9999")
	t.Setenv("INTCODE_SESSION_TTL", "90s")

	cfg := ConfigFromEnv()
	if cfg.Addr != ":9999" {
		t.Errorf("Addr = %q, want :9999", cfg.Addr)
	}
	if cfg.SessionTTL != 90*time.Second {
		t.Errorf("SessionTTL = %v, want 90s", cfg.SessionTTL)
	}
	if cfg.ReadTimeout != 10*time.Second {
		t.Errorf("ReadTimeout = %v, want default 10s", cfg.ReadTimeout)
	}
	if len(cfg.engineOptions()) != 2 {
		t.Errorf("engineOptions = %d options, want 2", len(cfg.engineOptions()))
	}
}
