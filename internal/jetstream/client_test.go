package jetstream

import (
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
)

func TestNewMsg(t *testing.T) {
	msg := newMsg("v1.leads.created", []byte(`{"lead_id":"l1"}`), map[string]string{
		nats.MsgIdHdr: "evt-1",
		"X-Source":    "leads",
	})

	assert.Equal(t, "v1.leads.created", msg.Subject)
	assert.Equal(t, `{"lead_id":"l1"}`, string(msg.Data))
	assert.Equal(t, "evt-1", msg.Header.Get(nats.MsgIdHdr))
	assert.Equal(t, "leads", msg.Header.Get("X-Source"))
}

func TestNewMsg_NoHeaders(t *testing.T) {
	msg := newMsg("v1.leads.created", nil, nil)
	assert.Empty(t, msg.Header.Get(nats.MsgIdHdr))
}

func TestClient_IsConnected_NilConn(t *testing.T) {
	c := &Client{}
	assert.False(t, c.IsConnected())
	c.Close()
}
