package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// connWrapper serializes writers. gorilla allows one concurrent writer and
// one concurrent reader per connection.
type connWrapper struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mutex        sync.Mutex
}

func newConnWrapper(c *websocket.Conn, writeTimeout time.Duration) *connWrapper {
	return &connWrapper{conn: c, writeTimeout: writeTimeout}
}

func (w *connWrapper) write(messageType int, data []byte) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.writeTimeout > 0 {
		_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	}
	return w.conn.WriteMessage(messageType, data)
}

func (w *connWrapper) WriteText(data []byte) error {
	return w.write(websocket.TextMessage, data)
}

func (w *connWrapper) Ping() error {
	return w.write(websocket.PingMessage, nil)
}

func (w *connWrapper) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return w.conn.Close()
}
