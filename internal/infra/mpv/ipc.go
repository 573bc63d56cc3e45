package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrDisconnected is returned once the IPC connection is gone.
var ErrDisconnected = errors.New("mpv disconnected")

type message struct {
	RequestID *int64          `json:"request_id,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Event     string          `json:"event,omitempty"`
	Name      string          `json:"name,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// ipc is a JSON IPC connection to a running mpv.
type ipc struct {
	conn net.Conn

	writeMu sync.Mutex
	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan message

	events    chan message
	done      chan struct{}
	closeOnce sync.Once
}

func newIPC(conn net.Conn) *ipc {
	c := &ipc{
		conn:    conn,
		pending: make(map[int64]chan message),
		events:  make(chan message, 32),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *ipc) readLoop() {
	defer c.close()

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			zlog.Debug().Msgf("mpv: ignoring malformed line: %v", err)
			continue
		}

		if msg.Event != "" {
			select {
			case c.events <- msg:
			case <-c.done:
				return
			}
			continue
		}
		if msg.RequestID == nil {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[*msg.RequestID]
		delete(c.pending, *msg.RequestID)
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	}
}

// command sends args and waits for the matching reply.
func (c *ipc) command(ctx context.Context, args ...any) (json.RawMessage, error) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan message, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	data, err := json.Marshal(request{Command: args, RequestID: id})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode command")
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	_, err = c.conn.Write(data)
	c.writeMu.Unlock()
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to send command"), ErrDisconnected)
	}

	select {
	case msg := <-ch:
		if msg.Error != "" && msg.Error != "success" {
			return nil, errors.Newf("mpv %v: %s", args[0], msg.Error)
		}
		return msg.Data, nil
	case <-c.done:
		return nil, ErrDisconnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *ipc) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
