package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anavictoriasalon/citabot/internal/channels/whatsapp"
	"github.com/anavictoriasalon/citabot/pkg/logging"
)

func TestDispatcherSerializesPerPhone(t *testing.T) {
	var mu sync.Mutex
	var order []string

	d := NewDispatcher(func(_ context.Context, msg whatsapp.Inbound) {
		if msg.MessageID == "a" {
			// Give B every chance to overtake if ordering were broken.
			time.Sleep(50 * time.Millisecond)
		}
		mu.Lock()
		order = append(order, msg.MessageID)
		mu.Unlock()
	}, logging.New("error"))

	if err := d.Submit(whatsapp.Inbound{MessageID: "a", From: "+34600000001", Text: "A"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := d.Submit(whatsapp.Inbound{MessageID: "b", From: "+34600000001", Text: "B"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("order = %v, want [a b]", order)
	}
}

func TestDispatcherParallelAcrossPhones(t *testing.T) {
	release := make(chan struct{})
	second := make(chan struct{})

	d := NewDispatcher(func(_ context.Context, msg whatsapp.Inbound) {
		switch msg.From {
		case "+34600000001":
			<-release
		case "+34600000002":
			close(second)
		}
	}, logging.New("error"))

	d.Submit(whatsapp.Inbound{MessageID: "a", From: "+34600000001"})
	d.Submit(whatsapp.Inbound{MessageID: "b", From: "+34600000002"})

	// The second phone's task must finish while the first is still blocked.
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("second customer was blocked behind the first")
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestDispatcherRetiresIdleWorkers(t *testing.T) {
	d := NewDispatcher(func(context.Context, whatsapp.Inbound) {},
		logging.New("error"), WithIdleTimeout(20*time.Millisecond))

	d.Submit(whatsapp.Inbound{MessageID: "a", From: "+34600000001"})

	deadline := time.Now().Add(2 * time.Second)
	for d.WorkerCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("worker count = %d, idle worker never retired", d.WorkerCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDispatcherRejectsAfterShutdown(t *testing.T) {
	d := NewDispatcher(func(context.Context, whatsapp.Inbound) {}, logging.New("error"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := d.Submit(whatsapp.Inbound{MessageID: "a", From: "+34600000001"}); err != ErrDispatcherClosed {
		t.Fatalf("Submit after shutdown = %v, want ErrDispatcherClosed", err)
	}
}

func TestConsumerRoutesQueueToDispatcher(t *testing.T) {
	got := make(chan whatsapp.Inbound, 1)
	d := NewDispatcher(func(_ context.Context, msg whatsapp.Inbound) {
		got <- msg
	}, logging.New("error"))

	queue := NewMemoryQueue(8)
	c := NewConsumer(queue, d, logging.New("error"),
		WithConsumerCount(1), WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	msg := whatsapp.Inbound{MessageID: "m1", From: "+34600000001", Text: "hola"}
	if err := c.Publish(ctx, msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case handled := <-got:
		if handled.MessageID != "m1" || handled.Text != "hola" {
			t.Fatalf("handled = %+v", handled)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message never reached the dispatcher")
	}

	cancel()
	c.Wait()
	sctx, scancel := context.WithTimeout(context.Background(), time.Second)
	defer scancel()
	d.Shutdown(sctx)
}
