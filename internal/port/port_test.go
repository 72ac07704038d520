package port

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T, p int) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp", ":"+strconv.Itoa(p))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestAllocateReturnsFreeBase(t *testing.T) {
	l := listen(t, 0)
	p := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	assert.Equal(t, p, Allocate(p, p+100, 10))
}

func TestAllocateStepsPastBusyPort(t *testing.T) {
	l := listen(t, 0)
	busy := l.Addr().(*net.TCPAddr).Port
	if !probe(busy + 7) {
		t.Skipf("port %d unexpectedly in use", busy+7)
	}

	assert.Equal(t, busy+7, Allocate(busy, busy+50, 7))
}

func TestAllocateReturnsSentinelWhenExhausted(t *testing.T) {
	l := listen(t, 0)
	busy := l.Addr().(*net.TCPAddr).Port

	assert.Equal(t, 0, Allocate(busy, busy, 100))
	assert.Equal(t, 0, Allocate(busy, busy+99, 100))
	assert.Equal(t, 0, Allocate(busy, busy+500, 0))
}

func TestAllocateRejectsOutOfRange(t *testing.T) {
	assert.Equal(t, 0, Allocate(70000, 80000, 100))
}

func TestWebsocketDisplayFive(t *testing.T) {
	if !probe(41365) {
		t.Skip("port 41365 in use on this host")
	}
	assert.Equal(t, 41365, Websocket(5))
}
