package roborock

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultLocalPort is the vacuum's LAN protocol port.
const DefaultLocalPort = 58867

const localRequestTimeout = 5 * time.Second

// localRequest is one newline-delimited JSON frame to the device.
type localRequest struct {
	ID     uint32 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// localResponse is the device's reply frame.
type localResponse struct {
	ID     uint32          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// LocalClient talks to one vacuum over its LAN protocol. It connects
// lazily on first use and reconnects after transport errors.
type LocalClient struct {
	addr  string
	cache *AttributeCache

	mu      sync.Mutex
	conn    net.Conn
	pending map[uint32]chan localResponse
	nextID  uint32
	closed  bool

	available atomic.Bool
}

// NewLocalClient creates a client for the vacuum at ip. port 0 selects
// DefaultLocalPort.
func NewLocalClient(ip string, port int) *LocalClient {
	if port == 0 {
		port = DefaultLocalPort
	}
	c := &LocalClient{
		addr:    net.JoinHostPort(ip, strconv.Itoa(port)),
		cache:   NewAttributeCache(),
		pending: make(map[uint32]chan localResponse),
	}
	c.available.Store(true)
	registerStandardCache(c)
	return c
}

// Ping checks the connection with a lightweight request.
func (c *LocalClient) Ping(ctx context.Context) error {
	var result any
	return c.SendCommand(ctx, "ping", nil, &result)
}

// GetProp fetches status, consumables, and the clean summary.
func (c *LocalClient) GetProp(ctx context.Context) (*DeviceProp, error) {
	return getProp(ctx, c)
}

// GetMultiMapsList fetches the saved map slots.
func (c *LocalClient) GetMultiMapsList(ctx context.Context) (*MultiMapsList, error) {
	var maps MultiMapsList
	if err := c.SendCommand(ctx, MethodGetMultiMapsList, nil, &maps); err != nil {
		return nil, err
	}
	return &maps, nil
}

// SendCommand sends one request frame and waits for the matching reply.
func (c *LocalClient) SendCommand(ctx context.Context, method string, params any, result any) error {
	ctx, cancel := context.WithTimeout(ctx, localRequestTimeout)
	defer cancel()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.conn == nil {
		if err := c.connectLocked(ctx); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("%w: %s: %v", ErrConnect, c.addr, err)
		}
	}

	c.nextID++
	id := c.nextID
	ch := make(chan localResponse, 1)
	c.pending[id] = ch
	conn := c.conn
	c.mu.Unlock()

	frame, err := json.Marshal(localRequest{ID: id, Method: method, Params: params})
	if err != nil {
		c.dropPending(id)
		return fmt.Errorf("encoding request: %w", err)
	}
	frame = append(frame, '\n')

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	if _, err := conn.Write(frame); err != nil {
		c.dropPending(id)
		c.disconnect()
		return fmt.Errorf("%w: writing to %s: %v", ErrConnect, c.addr, err)
	}

	select {
	case <-ctx.Done():
		c.dropPending(id)
		return fmt.Errorf("%w: %s %s", ErrTimeout, method, c.addr)
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("%w: connection lost waiting for %s", ErrConnect, method)
		}
		if resp.Error != nil {
			return fmt.Errorf("device error %d for %s: %s", resp.Error.Code, method, resp.Error.Message)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decoding %s result: %w", method, err)
			}
		}
		return nil
	}
}

// Cache returns the attribute cache.
func (c *LocalClient) Cache() *AttributeCache { return c.cache }

// IsAvailable reports the coordinator-driven availability flag.
func (c *LocalClient) IsAvailable() bool { return c.available.Load() }

// SetAvailable sets the availability flag.
func (c *LocalClient) SetAvailable(available bool) { c.available.Store(available) }

// Close disconnects and fails all pending requests.
func (c *LocalClient) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.disconnect()
	return nil
}

// connectLocked dials the device. Caller must hold c.mu.
func (c *LocalClient) connectLocked(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return err
	}
	c.conn = conn
	go c.readLoop(conn)
	return nil
}

// readLoop dispatches reply frames to their waiting requests until the
// connection drops.
func (c *LocalClient) readLoop(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	for scanner.Scan() {
		var resp localResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
	c.disconnect()
}

// disconnect tears the connection down and wakes pending waiters.
func (c *LocalClient) disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *LocalClient) dropPending(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}
