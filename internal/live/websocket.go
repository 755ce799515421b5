package live

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only listen; anything they send is discarded.
	maxMessageSize = 512
)

type wsFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func encodeFrame(ev Event) ([]byte, error) {
	name := ev.Name
	if name == "" {
		name = "message"
	}
	var data any = string(ev.Data)
	if json.Valid(ev.Data) {
		data = json.RawMessage(ev.Data)
	}
	return json.Marshal(wsFrame{Event: name, Data: data})
}

// ReadPump consumes control frames until the peer goes away, then closes the
// client. Run it in its own goroutine.
func (c *Client) ReadPump(conn *websocket.Conn) {
	defer c.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("live: websocket client %s read error: %v", c.ID, err)
			}
			return
		}
	}
}

// WritePump sends queued events as JSON text frames and pings the peer. It
// returns when the client is closed or a write fails.
func (c *Client) WritePump(conn *websocket.Conn) error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-c.done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return nil

		case ev := <-c.send:
			frame, err := encodeFrame(ev)
			if err != nil {
				return err
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}
