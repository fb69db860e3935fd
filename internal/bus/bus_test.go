package bus

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/johnjansen/tinysse/internal/message"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func pe(data string) message.PublishEnvelope {
	var m message.Message
	m.SetData(data)
	return message.PublishEnvelope{Msg: m}
}

func TestFanOutDeliversToAllSubscribers(t *testing.T) {
	b := New(4, testLogger())
	curA := b.Subscribe()
	curB := b.Subscribe()

	n := b.Publish(pe("hi"))
	if n != 2 {
		t.Fatalf("expected 2 subscribers observed at publish, got %d", n)
	}

	done := make(chan struct{})
	for _, cur := range []Cursor{curA, curB} {
		res, _ := b.Recv(cur, done)
		if res.Closed || res.Lagged != 0 {
			t.Fatalf("unexpected result: %+v", res)
		}
		if res.PE.Msg.Data != "hi" {
			t.Fatalf("unexpected payload: %+v", res.PE.Msg)
		}
	}
}

func TestZeroSubscriberPublishSucceeds(t *testing.T) {
	b := New(4, testLogger())
	n := b.Publish(pe("x"))
	if n != 0 {
		t.Fatalf("expected 0 subscribers, got %d", n)
	}
	if b.Len() != 1 {
		t.Fatalf("expected queue len 1, got %d", b.Len())
	}
}

func TestLagResyncsToTail(t *testing.T) {
	b := New(2, testLogger())
	cur := b.Subscribe()

	b.Publish(pe("1"))
	b.Publish(pe("2"))
	b.Publish(pe("3"))
	b.Publish(pe("4"))
	b.Publish(pe("5"))

	done := make(chan struct{})
	res, cur := b.Recv(cur, done)
	if res.Lagged == 0 {
		t.Fatalf("expected lag to be reported, got %+v", res)
	}

	// After resync, a fresh publish must be delivered normally.
	b.Publish(pe("6"))
	res2, _ := b.Recv(cur, done)
	if res2.Lagged != 0 || res2.Closed {
		t.Fatalf("expected normal delivery after resync, got %+v", res2)
	}
	if res2.PE.Msg.Data != "6" {
		t.Fatalf("expected item 6, got %+v", res2.PE.Msg)
	}
}

func TestRecvBlocksUntilPublish(t *testing.T) {
	b := New(4, testLogger())
	cur := b.Subscribe()
	done := make(chan struct{})

	resultCh := make(chan Result, 1)
	go func() {
		res, _ := b.Recv(cur, done)
		resultCh <- res
	}()

	select {
	case <-resultCh:
		t.Fatalf("Recv returned before any publish")
	case <-time.After(20 * time.Millisecond):
	}

	b.Publish(pe("late"))

	select {
	case res := <-resultCh:
		if res.PE.Msg.Data != "late" {
			t.Fatalf("unexpected payload: %+v", res.PE.Msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("Recv did not unblock after publish")
	}
}

func TestCloseUnblocksRecv(t *testing.T) {
	b := New(4, testLogger())
	cur := b.Subscribe()
	done := make(chan struct{})

	resultCh := make(chan Result, 1)
	go func() {
		res, _ := b.Recv(cur, done)
		resultCh <- res
	}()

	time.Sleep(10 * time.Millisecond)
	b.Close()

	select {
	case res := <-resultCh:
		if !res.Closed {
			t.Fatalf("expected Closed result, got %+v", res)
		}
	case <-time.After(time.Second):
		t.Fatalf("Recv did not unblock after close")
	}
}
