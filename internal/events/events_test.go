package events

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(context.Background(), SubjectCallStarted, map[string]any{"callId": "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNATSPublisherIntegration(t *testing.T) {
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skip("TEST_NATS_URL not set")
	}
	sub, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer sub.Close()
	ch := make(chan *nats.Msg, 1)
	if _, err := sub.ChanSubscribe(SubjectCallEnded, ch); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	p, err := NewNATSPublisher(url, "", zerolog.Nop())
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	defer p.Close()
	if err := p.Publish(context.Background(), SubjectCallEnded, map[string]string{"callId": "abc"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-ch:
		if string(msg.Data) != `{"callId":"abc"}` {
			t.Fatalf("unexpected payload %s", msg.Data)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
}
