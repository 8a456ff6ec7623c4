package out

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	syncout "focuskit/internal/modules/sync/port/out"
)

const writeWait = 5 * time.Second

// WebsocketTransport connects to a sync hub that relays every message to
// the other connected surfaces.
type WebsocketTransport struct {
	conn   *websocket.Conn
	logger zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func NewWebsocketTransport(ctx context.Context, url string, logger zerolog.Logger) (*WebsocketTransport, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial sync hub %s: %w", url, err)
	}
	return &WebsocketTransport{conn: conn, logger: logger}, nil
}

func (t *WebsocketTransport) Publish(_ context.Context, payload []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

func (t *WebsocketTransport) Listen(ctx context.Context, deliver func([]byte)) error {
	go func() {
		for {
			_, msg, err := t.conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					t.logger.Warn().Err(err).Msg("sync hub connection ended")
				}
				return
			}
			deliver(msg)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = t.Close()
	}()
	return nil
}

func (t *WebsocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}

var _ syncout.Transport = (*WebsocketTransport)(nil)
