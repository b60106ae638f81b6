package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"flagpole/internal/metrics"
	v1 "flagpole/pkg/api/v1"
)

func drainOne(t *testing.T, conn *Conn) v1.Envelope {
	t.Helper()
	select {
	case payload := <-conn.Send:
		var env v1.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			t.Fatalf("bad envelope: %v", err)
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return v1.Envelope{}
}

func TestHub_BroadcastReachesAllConnections(t *testing.T) {
	hub := NewHub(metrics.NoopObserver{})

	a := NewConn("a", 4)
	b := NewConn("b", 4)
	hub.Register(a)
	hub.Register(b)

	hub.Broadcast(v1.EventFlagUpdated, map[string]string{"k": "v"})

	for _, conn := range []*Conn{a, b} {
		env := drainOne(t, conn)
		if env.Event != v1.EventFlagUpdated {
			t.Errorf("expected %s, got %s", v1.EventFlagUpdated, env.Event)
		}
	}
}

func TestHub_SlowConnectionDoesNotBlockOthers(t *testing.T) {
	hub := NewHub(metrics.NoopObserver{})

	// Zero-capacity channel via buffer 1 already filled: the first event
	// fills it, later ones must drop without stalling the broadcast.
	slow := NewConn("slow", 1)
	fast := NewConn("fast", 8)
	hub.Register(slow)
	hub.Register(fast)

	for i := 0; i < 5; i++ {
		hub.Broadcast(v1.EventFlagUpdated, i)
	}

	// The fast connection got everything.
	for i := 0; i < 5; i++ {
		drainOne(t, fast)
	}
	// The slow one kept exactly its buffered event and the hub moved on.
	drainOne(t, slow)
	select {
	case <-slow.Send:
		t.Error("slow connection should have dropped the overflow")
	default:
	}

	if hub.Online() != 2 {
		t.Errorf("hub must not evict on overflow, online=%d", hub.Online())
	}
}

func TestHub_SendToUnknownConnection(t *testing.T) {
	hub := NewHub(metrics.NoopObserver{})
	err := hub.Send(v1.EventFlagUpdated, nil, "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHub_SendToOne(t *testing.T) {
	hub := NewHub(metrics.NoopObserver{})
	a := NewConn("a", 4)
	b := NewConn("b", 4)
	hub.Register(a)
	hub.Register(b)

	if err := hub.Send(v1.EventOverrideCreated, "x", "a"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	drainOne(t, a)
	select {
	case <-b.Send:
		t.Error("send-to-one must not reach other connections")
	default:
	}
}

func TestHub_SendRacingUnregister(t *testing.T) {
	hub := NewHub(metrics.NoopObserver{})

	// Senders hammer one connection id while it is registered and
	// unregistered in a tight loop. The send must never hit a channel
	// that Unregister has already closed.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.Send(v1.EventFlagUpdated, nil, "churned")
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		hub.Register(NewConn("churned", 1))
		hub.Unregister("churned")
	}

	close(stop)
	wg.Wait()
}

func TestHub_Concurrency(t *testing.T) {
	hub := NewHub(metrics.NoopObserver{})

	var wg sync.WaitGroup
	clientCount := 50
	msgCount := 200

	conns := make([]*Conn, clientCount)
	for i := 0; i < clientCount; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			c := NewConn(fmt.Sprintf("conn-%d", idx), 64)
			conns[idx] = c
			hub.Register(c)
		}(i)
	}
	wg.Wait()

	broadcastDone := make(chan struct{})
	go func() {
		for i := 0; i < msgCount; i++ {
			hub.Broadcast(v1.EventFlagUpdated, i)
			if i%10 == 0 {
				time.Sleep(time.Millisecond)
			}
		}
		close(broadcastDone)
	}()

	// Churn: unregister half while broadcasting.
	go func() {
		for i := 0; i < clientCount/2; i++ {
			time.Sleep(2 * time.Millisecond)
			hub.Unregister(conns[i].ID)
		}
	}()

	var readWg sync.WaitGroup
	for i := 0; i < clientCount; i++ {
		readWg.Add(1)
		go func(c *Conn) {
			defer readWg.Done()
			timeout := time.After(3 * time.Second)
			for {
				select {
				case _, ok := <-c.Send:
					if !ok {
						return
					}
				case <-broadcastDone:
					for {
						select {
						case _, ok := <-c.Send:
							if !ok {
								return
							}
						default:
							return
						}
					}
				case <-timeout:
					return
				}
			}
		}(conns[i])
	}

	readWg.Wait()
}
