package live

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

var (
	ErrClientClosed = errors.New("client channel closed")
	ErrBufferFull   = errors.New("client send buffer full")
)

const DefaultBufferSize = 64

// Client is a Channel backed by a buffered queue. A transport pump drains the
// queue onto the wire; Send never blocks, a full queue counts as a dead client.
type Client struct {
	ID   string
	send chan Event
	done chan struct{}
	once sync.Once
}

func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Client{
		ID:   id,
		send: make(chan Event, buffer),
		done: make(chan struct{}),
	}
}

func (c *Client) Send(ev Event) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- ev:
		return nil
	default:
		return ErrBufferFull
	}
}

func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// Done is closed once the client is closed or replaced.
func (c *Client) Done() <-chan struct{} { return c.done }

// WriteSSE encodes one event in text/event-stream framing.
func WriteSSE(w io.Writer, ev Event) error {
	var buf bytes.Buffer
	if ev.Name != "" {
		fmt.Fprintf(&buf, "event: %s\n", ev.Name)
	}
	for _, line := range bytes.Split(ev.Data, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')

	_, err := w.Write(buf.Bytes())
	return err
}

// PumpSSE writes queued events to w until the request ends, the client is
// closed or a write fails. Only the request goroutine may call it.
func (c *Client) PumpSSE(ctx context.Context, w http.ResponseWriter) error {
	rc := http.NewResponseController(w)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case ev := <-c.send:
			if err := WriteSSE(w, ev); err != nil {
				return fmt.Errorf("write event: %w", err)
			}
			if err := rc.Flush(); err != nil {
				return fmt.Errorf("flush event: %w", err)
			}
		}
	}
}
