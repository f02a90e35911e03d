package alert

import (
	"sync"
	"testing"
	"time"
)

func TestManagerFansOutToAllChannels(t *testing.T) {
	a := NewMockChannel("a")
	b := NewMockChannel("b")
	mgr := NewManager([]Channel{a, b}, time.Minute)

	err := mgr.SendInfo("trading started", map[string]interface{}{"exchange": "paper"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if a.Count() != 1 || b.Count() != 1 {
		t.Fatalf("expected both channels to receive the alert, got %d/%d", a.Count(), b.Count())
	}
	got := a.GetAlerts()[0]
	if got.Level != "INFO" || got.Message != "trading started" {
		t.Fatalf("unexpected alert %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Fatal("timestamp must be set on send")
	}
	if got.Fields["exchange"] != "paper" {
		t.Fatalf("fields must be carried, got %+v", got.Fields)
	}
}

func TestManagerLevels(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, time.Minute)

	_ = mgr.SendInfo("i", nil)
	_ = mgr.SendWarning("w", nil)
	_ = mgr.SendError("e", nil)

	alerts := mock.GetAlerts()
	if len(alerts) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(alerts))
	}
	for i, want := range []string{"INFO", "WARNING", "ERROR"} {
		if alerts[i].Level != want {
			t.Errorf("alert %d level = %s, want %s", i, alerts[i].Level, want)
		}
	}
}

func TestManagerThrottlesRepeatedAlerts(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, 100*time.Millisecond)

	_ = mgr.SendInfo("same", nil)
	_ = mgr.SendInfo("same", nil)
	if mock.Count() != 1 {
		t.Fatalf("repeat inside the window must be dropped, got %d", mock.Count())
	}

	// 不同 level 或不同消息互不限流
	_ = mgr.SendWarning("same", nil)
	_ = mgr.SendInfo("other", nil)
	if mock.Count() != 3 {
		t.Fatalf("distinct alerts must pass, got %d", mock.Count())
	}

	time.Sleep(150 * time.Millisecond)
	_ = mgr.SendInfo("same", nil)
	if mock.Count() != 4 {
		t.Fatalf("expected resend after the window, got %d", mock.Count())
	}
}

func TestManagerReportsTotalFailure(t *testing.T) {
	bad := NewMockChannel("bad")
	bad.SetShouldError(true)
	mgr := NewManager([]Channel{bad}, time.Minute)
	if err := mgr.SendError("down", nil); err == nil {
		t.Fatal("expected error when every channel fails")
	}

	ok := NewMockChannel("ok")
	mgr = NewManager([]Channel{bad, ok}, time.Minute)
	if err := mgr.SendError("partial", nil); err != nil {
		t.Fatalf("one delivered channel is enough: %v", err)
	}
	if ok.Count() != 1 {
		t.Fatal("healthy channel must still receive the alert")
	}
}

func TestManagerConcurrentSendsThrottled(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mgr.SendInfo("burst", nil)
		}()
	}
	wg.Wait()

	if mock.Count() != 1 {
		t.Fatalf("expected a single delivery for a burst, got %d", mock.Count())
	}
}

func TestThrottlerAllow(t *testing.T) {
	th := NewThrottler(100 * time.Millisecond)
	if !th.Allow("k") {
		t.Fatal("first send must pass")
	}
	if th.Allow("k") {
		t.Fatal("second send inside the window must be blocked")
	}
	if !th.Allow("other") {
		t.Fatal("unrelated key must pass")
	}
	time.Sleep(150 * time.Millisecond)
	if !th.Allow("k") {
		t.Fatal("must pass again after the window")
	}
}
