package roborock

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	cloudConnectTimeout = 10 * time.Second
	cloudRequestTimeout = 10 * time.Second
)

// cloudRequest is one request published to the account's device topic.
type cloudRequest struct {
	ID     uint32 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// cloudResponse is a reply frame from the vendor broker.
type cloudResponse struct {
	ID     uint32          `json:"id"`
	DUID   string          `json:"duid"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// CloudSession is the account's connection to the vendor MQTT broker.
// One session serves every device on the account; per-device clients
// hold references and the session disconnects when the last one closes.
type CloudSession struct {
	mqttUser string
	mqttPass string
	broker   string
	userID   string

	mu        sync.Mutex
	client    pahomqtt.Client
	pending   map[uint32]chan cloudResponse
	nextID    uint32
	refs      int
	connected bool
}

// NewCloudSession derives broker credentials from the login bundle.
// The broker expects hashed credentials, not the raw token.
func NewCloudSession(user *UserData) *CloudSession {
	r := user.RRIoT
	return &CloudSession{
		mqttUser: md5hex(r.UserID + ":" + r.Key)[2:10],
		mqttPass: md5hex(r.Secret + ":" + r.Key)[16:],
		broker:   r.Reference.MQTT,
		userID:   r.UserID,
		pending:  make(map[uint32]chan cloudResponse),
	}
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Connect establishes the broker connection and subscribes to the
// account's reply topic.
func (s *CloudSession) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(s.broker).
		SetClientID(s.mqttUser).
		SetUsername(s.mqttUser).
		SetPassword(s.mqttPass).
		SetConnectTimeout(cloudConnectTimeout).
		SetAutoReconnect(true).
		SetCleanSession(true)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cloudConnectTimeout) {
		return fmt.Errorf("%w: broker %s: connect timeout", ErrConnect, s.broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: broker %s: %v", ErrConnect, s.broker, err)
	}

	replyTopic := fmt.Sprintf("rr/m/o/%s/%s/#", s.userID, s.mqttUser)
	sub := client.Subscribe(replyTopic, 0, s.onMessage)
	if !sub.WaitTimeout(cloudConnectTimeout) || sub.Error() != nil {
		client.Disconnect(250)
		return fmt.Errorf("%w: subscribing %s", ErrConnect, replyTopic)
	}

	s.client = client
	s.connected = true
	return nil
}

// Acquire adds a device reference.
func (s *CloudSession) Acquire() {
	s.mu.Lock()
	s.refs++
	s.mu.Unlock()
}

// Release drops a device reference, disconnecting at zero.
func (s *CloudSession) Release() {
	s.mu.Lock()
	s.refs--
	done := s.refs <= 0 && s.connected
	client := s.client
	if done {
		s.connected = false
		s.client = nil
		for id, ch := range s.pending {
			close(ch)
			delete(s.pending, id)
		}
	}
	s.mu.Unlock()

	if done && client != nil {
		client.Disconnect(250)
	}
}

// Request sends one command to a device and waits for the matching reply.
func (s *CloudSession) Request(ctx context.Context, duid, method string, params any, result any) error {
	ctx, cancel := context.WithTimeout(ctx, cloudRequestTimeout)
	defer cancel()

	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return fmt.Errorf("%w: cloud session not connected", ErrConnect)
	}
	s.nextID++
	id := s.nextID
	ch := make(chan cloudResponse, 1)
	s.pending[id] = ch
	client := s.client
	s.mu.Unlock()

	payload, err := json.Marshal(cloudRequest{ID: id, Method: method, Params: params})
	if err != nil {
		s.dropPending(id)
		return fmt.Errorf("encoding request: %w", err)
	}

	topic := fmt.Sprintf("rr/m/i/%s/%s/%s", s.userID, s.mqttUser, duid)
	token := client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(cloudRequestTimeout) || token.Error() != nil {
		s.dropPending(id)
		return fmt.Errorf("%w: publishing %s to %s", ErrConnect, method, duid)
	}

	select {
	case <-ctx.Done():
		s.dropPending(id)
		return fmt.Errorf("%w: %s to %s", ErrTimeout, method, duid)
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("%w: session closed waiting for %s", ErrConnect, method)
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

func (s *CloudSession) onMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	var resp cloudResponse
	if err := json.Unmarshal(msg.Payload(), &resp); err != nil {
		return
	}
	s.mu.Lock()
	ch, ok := s.pending[resp.ID]
	if ok {
		delete(s.pending, resp.ID)
	}
	s.mu.Unlock()
	if ok {
		ch <- resp
	}
}

func (s *CloudSession) dropPending(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

// CloudClient scopes the shared session to one device.
type CloudClient struct {
	session   *CloudSession
	duid      string
	cache     *AttributeCache
	available atomic.Bool
}

// NewCloudClient creates a device view over the session and takes a
// reference on it.
func NewCloudClient(session *CloudSession, duid string) *CloudClient {
	c := &CloudClient{session: session, duid: duid, cache: NewAttributeCache()}
	c.available.Store(true)
	session.Acquire()
	registerStandardCache(c)
	return c
}

// Ping round-trips a lightweight request through the broker.
func (c *CloudClient) Ping(ctx context.Context) error {
	var result any
	return c.SendCommand(ctx, "ping", nil, &result)
}

// GetProp fetches status, consumables, and the clean summary.
func (c *CloudClient) GetProp(ctx context.Context) (*DeviceProp, error) {
	return getProp(ctx, c)
}

// GetMultiMapsList fetches the saved map slots.
func (c *CloudClient) GetMultiMapsList(ctx context.Context) (*MultiMapsList, error) {
	var maps MultiMapsList
	if err := c.SendCommand(ctx, MethodGetMultiMapsList, nil, &maps); err != nil {
		return nil, err
	}
	return &maps, nil
}

// NetworkInfo fetches the device's LAN details, used to build the
// local client during setup.
func (c *CloudClient) NetworkInfo(ctx context.Context) (*NetworkInfo, error) {
	var info NetworkInfo
	if err := c.SendCommand(ctx, MethodGetNetworkInfo, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SendCommand routes a command through the shared session.
func (c *CloudClient) SendCommand(ctx context.Context, method string, params any, result any) error {
	return c.session.Request(ctx, c.duid, method, params, result)
}

// Cache returns the attribute cache.
func (c *CloudClient) Cache() *AttributeCache { return c.cache }

// IsAvailable reports the coordinator-driven availability flag.
func (c *CloudClient) IsAvailable() bool { return c.available.Load() }

// SetAvailable sets the availability flag.
func (c *CloudClient) SetAvailable(available bool) { c.available.Store(available) }

// Close drops this device's reference on the session.
func (c *CloudClient) Close() error {
	c.session.Release()
	return nil
}
