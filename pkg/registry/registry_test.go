package registry

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shadowmesh/harmonydesk/pkg/cipher"
	"github.com/shadowmesh/harmonydesk/pkg/session"
)

var errTestConnect = errors.New("fake connect failure")

// fakeConnector builds a real in-process Session over a loopback UDP pair
// so registry behavior can be exercised without touching the real connect
// orchestrator.
type fakeConnector struct {
	calls atomic.Int32
	fail  bool
}

func (f *fakeConnector) Connect(id, secret string) (*session.Session, error) {
	f.calls.Add(1)
	if f.fail {
		return nil, errTestConnect
	}

	local, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		return nil, err
	}
	peer := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}
	var digest [32]byte
	c, err := cipher.New(digest, "")
	if err != nil {
		local.Close()
		return nil, err
	}
	return session.New(local, peer, c, 0, 0, nil), nil
}

func TestRegistryConnectIsIdempotentForSameID(t *testing.T) {
	fc := &fakeConnector{}
	r := New(fc, nil)

	info1, err := r.Connect("peer-a", "secret")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	info2, err := r.Connect("peer-a", "secret")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if info1 != info2 {
		t.Fatalf("Connect() info mismatch across calls: %+v vs %+v", info1, info2)
	}
	if fc.calls.Load() != 1 {
		t.Fatalf("connector called %d times, want 1 (second connect must not dial again)", fc.calls.Load())
	}
	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}

	r.Disconnect("peer-a")
}

func TestRegistryConnectFailureLeavesNoTrace(t *testing.T) {
	fc := &fakeConnector{fail: true}
	r := New(fc, nil)

	if _, err := r.Connect("peer-b", "secret"); err == nil {
		t.Fatal("Connect() error = nil, want failure")
	}
	if r.Count() != 0 {
		t.Fatalf("Count() = %d, want 0 after failed connect", r.Count())
	}
}

func TestRegistryDisconnectSymmetry(t *testing.T) {
	fc := &fakeConnector{}
	r := New(fc, nil)

	if _, err := r.Connect("peer-c", "secret"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}

	r.Disconnect("peer-c")
	if r.Count() != 0 {
		t.Fatalf("Count() = %d, want 0 after disconnect", r.Count())
	}

	// Disconnecting an absent id is a no-op, not an error.
	r.Disconnect("never-connected")
	if r.Count() != 0 {
		t.Fatalf("Count() = %d, want 0 after no-op disconnect", r.Count())
	}
}

func TestRegistryDisconnectAllClearsEverySession(t *testing.T) {
	fc := &fakeConnector{}
	r := New(fc, nil)

	for _, id := range []string{"s1", "s2", "s3"} {
		if _, err := r.Connect(id, "secret"); err != nil {
			t.Fatalf("Connect(%s) error = %v", id, err)
		}
	}
	if r.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", r.Count())
	}

	r.DisconnectAll()
	if r.Count() != 0 {
		t.Fatalf("Count() = %d, want 0 after DisconnectAll", r.Count())
	}
}

func TestRegistryConcurrentConnectSameIDKeepsOneSession(t *testing.T) {
	fc := &fakeConnector{}
	r := New(fc, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Connect("shared", "secret"); err != nil {
				t.Errorf("Connect() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}

	r.DisconnectAll()
}

func TestRegistryEventNotifications(t *testing.T) {
	fc := &fakeConnector{}
	r := New(fc, nil)

	var events []string
	var mu sync.Mutex
	r.SetEventFunc(func(event, id string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event+":"+id)
	})

	if _, err := r.Connect("watched", "secret"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	r.Disconnect("watched")

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || events[0] != "connected:watched" || events[1] != "disconnected:watched" {
		t.Fatalf("events = %v, want [connected:watched disconnected:watched]", events)
	}
}

func TestRegistryFirstReturnsLiveSession(t *testing.T) {
	fc := &fakeConnector{}
	r := New(fc, nil)

	if _, _, ok := r.First(); ok {
		t.Fatal("First() ok = true on empty registry")
	}

	if _, err := r.Connect("only", "secret"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	id, sess, ok := r.First()
	if !ok || id != "only" || sess == nil {
		t.Fatalf("First() = (%q, %v, %v), want (\"only\", non-nil, true)", id, sess, ok)
	}

	r.DisconnectAll()
}

func TestRegistryList(t *testing.T) {
	fc := &fakeConnector{}
	r := New(fc, nil)

	for _, id := range []string{"a", "b"} {
		if _, err := r.Connect(id, "secret"); err != nil {
			t.Fatalf("Connect(%s) error = %v", id, err)
		}
	}

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("List() returned %d entries, want 2", len(list))
	}
	seen := map[string]bool{}
	for _, info := range list {
		seen[info.ID] = true
		if !info.Connected {
			t.Fatalf("info for %s reports Connected = false", info.ID)
		}
	}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("List() = %+v, missing expected ids", list)
	}

	r.DisconnectAll()
}
