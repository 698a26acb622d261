package admission

import (
	"testing"
	"time"
)

func TestTryAdmitFirstMessage(t *testing.T) {
	gate := NewGate(30 * time.Second)
	defer gate.Close()

	decision := gate.TryAdmit(1, time.Now())
	if !decision.Admitted() {
		t.Errorf("TryAdmit() first message = %v, want admitted", decision.Status)
	}
	if !gate.Pending(1) {
		t.Errorf("Pending() after admission = false, want true")
	}
}

func TestTryAdmitBusy(t *testing.T) {
	gate := NewGate(30 * time.Second)
	defer gate.Close()

	now := time.Now()
	if d := gate.TryAdmit(1, now); !d.Admitted() {
		t.Fatalf("first TryAdmit() = %v, want admitted", d.Status)
	}

	// Second message while the first is still in flight
	d := gate.TryAdmit(1, now.Add(time.Second))
	if d.Status != StatusBusy {
		t.Errorf("TryAdmit() while pending = %v, want StatusBusy", d.Status)
	}
}

func TestTryAdmitCooldown(t *testing.T) {
	gate := NewGate(30 * time.Second)
	defer gate.Close()

	now := time.Now()
	if d := gate.TryAdmit(1, now); !d.Admitted() {
		t.Fatalf("first TryAdmit() = %v, want admitted", d.Status)
	}
	gate.Release(1)

	tests := []struct {
		name             string
		at               time.Duration
		wantStatus       Status
		wantRemainingSec int64
	}{
		{name: "just after release", at: 1 * time.Second, wantStatus: StatusCooldown, wantRemainingSec: 29},
		{name: "fractional remainder rounds up", at: 29*time.Second + 500*time.Millisecond, wantStatus: StatusCooldown, wantRemainingSec: 1},
		{name: "cooldown elapsed", at: 30 * time.Second, wantStatus: StatusAdmitted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := gate.TryAdmit(1, now.Add(tt.at))
			if d.Status != tt.wantStatus {
				t.Errorf("TryAdmit() status = %v, want %v", d.Status, tt.wantStatus)
			}
			if tt.wantStatus == StatusCooldown && d.RemainingSeconds != tt.wantRemainingSec {
				t.Errorf("TryAdmit() remaining = %d, want %d", d.RemainingSeconds, tt.wantRemainingSec)
			}
			if tt.wantStatus == StatusAdmitted {
				gate.Release(1)
			}
		})
	}
}

func TestCooldownCountsFromAdmission(t *testing.T) {
	gate := NewGate(30 * time.Second)
	defer gate.Close()

	now := time.Now()
	if d := gate.TryAdmit(1, now); !d.Admitted() {
		t.Fatalf("first TryAdmit() = %v, want admitted", d.Status)
	}

	// A long-running request releases 20s after admission; only 10s of
	// cooldown should remain, not a fresh 30s
	gate.Release(1)
	d := gate.TryAdmit(1, now.Add(20*time.Second))
	if d.Status != StatusCooldown {
		t.Fatalf("TryAdmit() = %v, want StatusCooldown", d.Status)
	}
	if d.RemainingSeconds != 10 {
		t.Errorf("TryAdmit() remaining = %d, want 10", d.RemainingSeconds)
	}
}

func TestReleaseKeepsCooldown(t *testing.T) {
	gate := NewGate(30 * time.Second)
	defer gate.Close()

	now := time.Now()
	gate.TryAdmit(1, now)
	gate.Release(1)

	if gate.Pending(1) {
		t.Errorf("Pending() after release = true, want false")
	}

	if d := gate.TryAdmit(1, now.Add(time.Second)); d.Status != StatusCooldown {
		t.Errorf("TryAdmit() after release = %v, want StatusCooldown", d.Status)
	}
}

func TestUsersAreIndependent(t *testing.T) {
	gate := NewGate(30 * time.Second)
	defer gate.Close()

	now := time.Now()
	if d := gate.TryAdmit(1, now); !d.Admitted() {
		t.Fatalf("user 1 TryAdmit() = %v, want admitted", d.Status)
	}

	// A different user is unaffected by user 1's pending request and cooldown
	if d := gate.TryAdmit(2, now); !d.Admitted() {
		t.Errorf("user 2 TryAdmit() = %v, want admitted", d.Status)
	}
}

func TestReleaseUnknownUser(t *testing.T) {
	gate := NewGate(30 * time.Second)
	defer gate.Close()

	// Must not panic or create state
	gate.Release(42)
	if gate.Pending(42) {
		t.Errorf("Pending() after releasing unknown user = true, want false")
	}
}

func TestZeroCooldown(t *testing.T) {
	gate := NewGate(0)
	defer gate.Close()

	now := time.Now()
	gate.TryAdmit(1, now)
	gate.Release(1)

	if d := gate.TryAdmit(1, now); !d.Admitted() {
		t.Errorf("TryAdmit() with zero cooldown = %v, want admitted", d.Status)
	}
}

func TestCleanupIdleRecords(t *testing.T) {
	gate := NewGate(time.Second)
	defer gate.Close()

	now := time.Now()
	gate.TryAdmit(1, now)
	gate.Release(1)
	gate.TryAdmit(2, now) // still pending

	gate.cleanupIdle(now.Add(time.Minute))

	gate.mu.Lock()
	_, idleExists := gate.records[1]
	_, pendingExists := gate.records[2]
	gate.mu.Unlock()

	if idleExists {
		t.Errorf("idle record survived cleanup")
	}
	if !pendingExists {
		t.Errorf("pending record was removed by cleanup")
	}
}
