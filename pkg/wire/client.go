package wire

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/JoseTor101/mom-middleware/pkg/types"
)

// ClientConfig tunes per-call connection behavior. Calls are never retried
// at this layer; failover is the dispatcher's job.
type ClientConfig struct {
	DialTimeout time.Duration // connection establishment
	CallTimeout time.Duration // full request/response exchange
	KeepAlive   time.Duration // TCP keepalive on the dialed connection
}

// DefaultClientConfig matches the deadlines the dispatcher operates with.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		DialTimeout: 1 * time.Second,
		CallTimeout: 3 * time.Second,
		KeepAlive:   5 * time.Second,
	}
}

// Client issues RPCs to one peer address. A fresh connection is opened per
// call and closed when the response arrives, mirroring the short-lived
// channel usage of the dispatch path.
type Client struct {
	addr   string
	config ClientConfig
	corrID atomic.Int32
}

// NewClient creates a client for the given peer address.
func NewClient(addr string, config ClientConfig) *Client {
	return &Client{addr: addr, config: config}
}

// Addr returns the peer address this client targets.
func (c *Client) Addr() string {
	return c.addr
}

func (c *Client) call(apiKey int16, req, resp message) error {
	dialer := net.Dialer{
		Timeout:   c.config.DialTimeout,
		KeepAlive: c.config.KeepAlive,
	}
	conn, err := dialer.Dial("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", types.ErrUnreachable, c.addr, err)
	}
	defer conn.Close()

	if c.config.CallTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(c.config.CallTimeout)); err != nil {
			return fmt.Errorf("%w: set deadline: %v", types.ErrUnreachable, err)
		}
	}

	corrID := c.corrID.Add(1)
	if err := writeFrame(conn, encodeRequest(apiKey, corrID, req)); err != nil {
		return fmt.Errorf("%w: write to %s: %v", types.ErrUnreachable, c.addr, err)
	}

	payload, err := readFrame(conn)
	if err != nil {
		return fmt.Errorf("%w: read from %s: %v", types.ErrUnreachable, c.addr, err)
	}

	pd := &decoder{buf: payload}
	gotID, err := pd.getInt32()
	if err != nil {
		return fmt.Errorf("%w: decode response header: %v", types.ErrUnreachable, err)
	}
	if gotID != corrID {
		return fmt.Errorf("%w: correlation id mismatch (sent %d, got %d)", types.ErrUnreachable, corrID, gotID)
	}
	if err := resp.decode(pd); err != nil {
		return fmt.Errorf("%w: decode response body: %v", types.ErrUnreachable, err)
	}
	return nil
}

// SendMessage publishes a message to a topic on the peer.
func (c *Client) SendMessage(topic, msg string) (*MessageResponse, error) {
	resp := &MessageResponse{}
	if err := c.call(apiKeySendMessage, &MessageRequest{Topic: topic, Message: msg}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ReceiveMessage pops the next available message from a topic on the peer.
func (c *Client) ReceiveMessage(topic string) (*MessageResponse, error) {
	resp := &MessageResponse{}
	if err := c.call(apiKeyReceiveMessage, &MessageRequest{Topic: topic}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CreateTopic creates a topic with the given partition count on the peer.
func (c *Client) CreateTopic(topic string, partitions int32) (*MessageResponse, error) {
	resp := &MessageResponse{}
	if err := c.call(apiKeyCreateTopic, &TopicRequest{TopicName: topic, Partitions: partitions}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetNextInstance asks the master for the next round-robin worker.
func (c *Client) GetNextInstance() (*InstanceResponse, error) {
	resp := &InstanceResponse{}
	if err := c.call(apiKeyGetNextInstance, emptyRequest{}, resp); err != nil {
		return nil, err
	}
	if resp.Name == "" && resp.Address == "" {
		return nil, types.ErrNoInstances
	}
	return resp, nil
}

// RegisterInstance registers a worker with the master.
func (c *Client) RegisterInstance(nodeName, hostname string, port int32) (*MessageResponse, error) {
	resp := &MessageResponse{}
	req := &RegistrationRequest{NodeName: nodeName, Hostname: hostname, Port: port}
	if err := c.call(apiKeyRegisterInstance, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Ping reports whether a TCP connection to addr can be established within
// the timeout. Liveness probes and health checks use this instead of a
// full RPC.
func Ping(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
