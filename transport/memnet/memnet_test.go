package memnet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/transport"
	"github.com/cardmesh/go-cardmesh/wire"
)

func open(t *testing.T, hub *Hub, addr types.Address) *Transport {
	t.Helper()
	tr := hub.NewTransport()
	confirmed, err := tr.Open(context.Background(), addr)
	require.NoError(t, err)
	require.Equal(t, addr, confirmed)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestConnectAccept(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	a := open(t, hub, "a")
	b := open(t, hub, "b")

	hello := types.Identity{Address: "a", AccountID: "alice", DisplayName: "Alice"}
	accepted := make(chan transport.Conn, 1)
	go func() {
		attempt := <-b.Incoming()
		require.Equal(t, types.Address("a"), attempt.Remote())
		require.Equal(t, hello, attempt.Hello())
		conn, err := attempt.Accept(context.Background())
		require.NoError(t, err)
		accepted <- conn
	}()

	ca, err := a.Connect(context.Background(), "b", hello)
	require.NoError(t, err)
	require.Equal(t, types.Address("b"), ca.Remote())
	cb := <-accepted
	require.Equal(t, types.Address("a"), cb.Remote())

	for i := 0; i < 3; i++ {
		require.NoError(t, ca.Send(context.Background(), wire.Message{Type: wire.TypeProfileUpdate, Timestamp: types.Timestamp(i)}))
	}
	for i := 0; i < 3; i++ {
		msg := <-cb.Messages()
		require.Equal(t, types.Timestamp(i), msg.Timestamp)
	}

	require.NoError(t, cb.Close())
	<-ca.Done()
	_, ok := <-ca.Messages()
	require.False(t, ok)
	require.ErrorIs(t, ca.Send(context.Background(), wire.Message{}), transport.ErrClosed)
}

func TestConnectReject(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	a := open(t, hub, "a")
	b := open(t, hub, "b")
	go func() {
		attempt := <-b.Incoming()
		require.NoError(t, attempt.Reject("unknown peer"))
	}()
	_, err := a.Connect(context.Background(), "b", types.Identity{Address: "a"})
	require.ErrorIs(t, err, transport.ErrRejected)
	require.ErrorContains(t, err, "unknown peer")
}

func TestConnectTimeout(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	a := open(t, hub, "a")
	b := open(t, hub, "b")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := a.Connect(ctx, "b", types.Identity{Address: "a"})
	require.ErrorIs(t, err, transport.ErrConnectTimeout)

	// late decision on abandoned attempt
	attempt := <-b.Incoming()
	_, err = attempt.Accept(context.Background())
	require.ErrorIs(t, err, transport.ErrPeerUnreachable)
}

func TestUnreachableAndBroker(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	a := open(t, hub, "a")
	_, err := a.Connect(context.Background(), "nobody", types.Identity{Address: "a"})
	require.ErrorIs(t, err, transport.ErrPeerUnreachable)

	hub.SetBrokerDown(true)
	_, err = hub.NewTransport().Open(context.Background(), "c")
	require.ErrorIs(t, err, transport.ErrBrokerUnavailable)
	_, err = a.Connect(context.Background(), "nobody", types.Identity{Address: "a"})
	require.ErrorIs(t, err, transport.ErrBrokerUnavailable)
}

func TestAddressConflict(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	a := open(t, hub, "a")
	_, err := hub.NewTransport().Open(context.Background(), "a")
	require.ErrorIs(t, err, transport.ErrAddressConflict)

	// address is released when the session ends
	require.NoError(t, a.Close())
	open(t, hub, "a")
}

func TestDisconnect(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	a := open(t, hub, "a")
	b := open(t, hub, "b")
	go func() {
		attempt := <-b.Incoming()
		attempt.Accept(context.Background())
	}()
	conn, err := a.Connect(context.Background(), "b", types.Identity{Address: "a"})
	require.NoError(t, err)
	hub.Disconnect("b")
	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		require.FailNow(t, "connection wasn't closed")
	}

	require.NoError(t, b.Close())
	_, ok := <-b.Incoming()
	require.False(t, ok)
}
