package wire

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoseTor101/mom-middleware/pkg/types"
)

func TestMessageCodecs(t *testing.T) {
	tests := []struct {
		name string
		msg  message
		into message
	}{
		{
			name: "message request",
			msg:  &MessageRequest{Topic: "orders", Message: "hello"},
			into: &MessageRequest{},
		},
		{
			name: "message response",
			msg:  &MessageResponse{Status: "Success", Message: "Message enqueued"},
			into: &MessageResponse{},
		},
		{
			name: "topic request",
			msg:  &TopicRequest{TopicName: "orders", Partitions: 4},
			into: &TopicRequest{},
		},
		{
			name: "instance response",
			msg:  &InstanceResponse{Name: "node-1", Address: "10.0.0.1:5000"},
			into: &InstanceResponse{},
		},
		{
			name: "registration request",
			msg:  &RegistrationRequest{NodeName: "node-1", Hostname: "10.0.0.1", Port: 5000},
			into: &RegistrationRequest{},
		},
		{
			name: "empty strings survive",
			msg:  &MessageRequest{},
			into: &MessageRequest{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := &encoder{}
			tt.msg.encode(pe)
			pd := &decoder{buf: pe.bytes()}
			require.NoError(t, tt.into.decode(pd))
			assert.Equal(t, tt.msg, tt.into)
		})
	}
}

func TestDecoderTruncatedFrame(t *testing.T) {
	pe := &encoder{}
	(&MessageRequest{Topic: "orders", Message: "hello"}).encode(pe)
	truncated := pe.bytes()[:3]

	pd := &decoder{buf: truncated}
	err := (&MessageRequest{}).decode(pd)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

// stubHandler serves canned answers and records what it saw.
type stubHandler struct {
	mu       sync.Mutex
	sent     []string
	received []string
	created  []string
}

func (h *stubHandler) SendMessage(ctx context.Context, topic, message string) (string, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, topic+"/"+message)
	return types.StatusSuccess, "Message enqueued"
}

func (h *stubHandler) ReceiveMessage(ctx context.Context, topic string) (string, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, topic)
	if topic == "empty" {
		return types.StatusEmpty, "No messages available"
	}
	return types.StatusSuccess, "m1"
}

func (h *stubHandler) CreateTopic(ctx context.Context, topic string, partitions int32) (string, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.created = append(h.created, fmt.Sprintf("%s/%d", topic, partitions))
	return types.StatusSuccess, "Topic created"
}

func (h *stubHandler) GetNextInstance(ctx context.Context) (string, string, error) {
	return "node-1", "10.0.0.1:5000", nil
}

func (h *stubHandler) RegisterInstance(ctx context.Context, nodeName, hostname string, port int32) (string, string) {
	return types.StatusSuccess, "Instance " + nodeName + " registered successfully"
}

func startTestServer(t *testing.T, h Handler) string {
	t.Helper()
	srv := NewServer(h)
	port, err := srv.Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = srv.Close()
	})
	return fmt.Sprintf("127.0.0.1:%d", port)
}

func TestClientServerRoundTrip(t *testing.T) {
	h := &stubHandler{}
	addr := startTestServer(t, h)
	client := NewClient(addr, DefaultClientConfig())

	sendResp, err := client.SendMessage("orders", "hello")
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, sendResp.Status)

	recvResp, err := client.ReceiveMessage("orders")
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, recvResp.Status)
	assert.Equal(t, "m1", recvResp.Message)

	emptyResp, err := client.ReceiveMessage("empty")
	require.NoError(t, err)
	assert.Equal(t, types.StatusEmpty, emptyResp.Status)

	topicResp, err := client.CreateTopic("orders", 4)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, topicResp.Status)

	inst, err := client.GetNextInstance()
	require.NoError(t, err)
	assert.Equal(t, "node-1", inst.Name)
	assert.Equal(t, "10.0.0.1:5000", inst.Address)

	regResp, err := client.RegisterInstance("node-2", "10.0.0.2", 5001)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, regResp.Status)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, []string{"orders/hello"}, h.sent)
	assert.Equal(t, []string{"orders", "empty"}, h.received)
	assert.Equal(t, []string{"orders/4"}, h.created)
}

// emptyInstanceHandler mimics a master with nothing registered.
type emptyInstanceHandler struct{ stubHandler }

func (h *emptyInstanceHandler) GetNextInstance(ctx context.Context) (string, string, error) {
	return "", "", types.ErrNoInstances
}

func TestGetNextInstanceEmptyRegistry(t *testing.T) {
	addr := startTestServer(t, &emptyInstanceHandler{})
	client := NewClient(addr, DefaultClientConfig())

	_, err := client.GetNextInstance()
	assert.ErrorIs(t, err, types.ErrNoInstances)
}

func TestClientUnreachablePeer(t *testing.T) {
	client := NewClient("127.0.0.1:1", ClientConfig{
		DialTimeout: 200 * time.Millisecond,
		CallTimeout: 200 * time.Millisecond,
	})
	_, err := client.SendMessage("orders", "hello")
	assert.ErrorIs(t, err, types.ErrUnreachable)
}

func TestPing(t *testing.T) {
	addr := startTestServer(t, &stubHandler{})
	assert.True(t, Ping(addr, time.Second))
	assert.False(t, Ping("127.0.0.1:1", 200*time.Millisecond))
}

func TestConcurrentCalls(t *testing.T) {
	h := &stubHandler{}
	addr := startTestServer(t, h)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client := NewClient(addr, DefaultClientConfig())
			_, err := client.SendMessage("orders", fmt.Sprintf("m-%d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Len(t, h.sent, 20)
}
