//go:build linux

package listener

import (
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newLoopback(t *testing.T, opts ...Option) *Listener {
	t.Helper()
	l, err := New("127.0.0.1", 0, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestResolveErrors(t *testing.T) {
	_, err := New("localhost", 9600)
	var resolveErr *ResolveError
	require.ErrorAs(t, err, &resolveErr)
	assert.Equal(t, "localhost", resolveErr.Address)

	_, err = New("127.0.0.1", 70000)
	require.ErrorAs(t, err, &resolveErr)
	assert.ErrorIs(t, err, strconv.ErrRange)

	_, err = New("127.0.0.1", -1)
	assert.ErrorIs(t, err, strconv.ErrRange)
}

func TestBindInUse(t *testing.T) {
	l := newLoopback(t)
	addr, err := l.Addr()
	require.NoError(t, err)

	_, err = New("127.0.0.1", int(addr.Port()))
	var bindErr *BindError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "bind", bindErr.Op)
	assert.ErrorIs(t, err, unix.EADDRINUSE)
}

func TestNewListener(t *testing.T) {
	l := newLoopback(t, WithName("api"), WithBacklog(16), WithTCPKeepAlive(30*time.Second))

	assert.Equal(t, "api", l.Name())
	assert.GreaterOrEqual(t, l.Fd(), 0)
	assert.NotNil(t, l.ReadHandler())
	assert.Nil(t, l.WriteHandler())

	addr, err := l.Addr()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", addr.Addr().String())
	assert.NotZero(t, addr.Port())

	keepalive, err := unix.GetsockoptInt(l.Fd(), unix.SOL_SOCKET, unix.SO_KEEPALIVE)
	require.NoError(t, err)
	assert.Equal(t, 1, keepalive)

	flags, err := unix.FcntlInt(uintptr(l.Fd()), unix.F_GETFL, 0)
	require.NoError(t, err)
	assert.NotZero(t, flags&unix.O_NONBLOCK)
}

func TestDefaultName(t *testing.T) {
	l := newLoopback(t)
	assert.Equal(t, "127.0.0.1:0", l.Name())
}

func TestAcceptDrainsBacklog(t *testing.T) {
	const conns = 3

	var (
		mu      sync.Mutex
		remotes []unix.Sockaddr
	)
	l := newLoopback(t, WithConnHandler(func(fd int, sa unix.Sockaddr) {
		mu.Lock()
		remotes = append(remotes, sa)
		mu.Unlock()
		_ = unix.Close(fd)
	}))

	addr, err := l.Addr()
	require.NoError(t, err)

	for i := 0; i < conns; i++ {
		c, err := net.Dial("tcp", addr.String())
		require.NoError(t, err)
		defer c.Close()
	}

	// 三次握手在内核中完成，等所有连接进入accept队列
	require.Eventually(t, func() bool {
		l.ReadHandler()()
		return l.Accepted() == conns
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, remotes, conns)
	for _, sa := range remotes {
		_, ok := sa.(*unix.SockaddrInet4)
		assert.True(t, ok)
	}

	// 队列已经空了，再调用一次立即返回
	l.ReadHandler()()
	assert.EqualValues(t, conns, l.Accepted())
}

func TestAcceptNothingPending(t *testing.T) {
	var calls atomic.Int32
	l := newLoopback(t, WithConnHandler(func(fd int, sa unix.Sockaddr) {
		calls.Add(1)
		_ = unix.Close(fd)
	}))

	l.ReadHandler()()
	assert.Zero(t, l.Accepted())
	assert.Zero(t, calls.Load())
}

func TestListenIPv6(t *testing.T) {
	l, err := New("::1", 0)
	if err != nil {
		t.Skipf("ipv6 loopback unavailable: %v", err)
	}
	defer l.Close()

	addr, err := l.Addr()
	require.NoError(t, err)
	assert.True(t, addr.Addr().Is6())
	assert.NotZero(t, addr.Port())
}

func TestCloseTwice(t *testing.T) {
	l, err := New("127.0.0.1", 0)
	require.NoError(t, err)

	require.NoError(t, l.Close())
	assert.NoError(t, l.Close())
	assert.Equal(t, -1, l.Fd())
}

func TestAcceptDropsWhenOutOfFds(t *testing.T) {
	var handled atomic.Int32
	l := newLoopback(t, WithConnHandler(func(fd int, sa unix.Sockaddr) {
		handled.Add(1)
		_ = unix.Close(fd)
	}))
	require.GreaterOrEqual(t, l.spare, 0)

	addr, err := l.Addr()
	require.NoError(t, err)

	c, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer c.Close()

	pfd := []unix.PollFd{{Fd: int32(l.Fd()), Events: unix.POLLIN}}
	n, err := unix.Poll(pfd, 5000)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	var calls atomic.Int32
	l.accept4 = func(fd int, flags int) (int, unix.Sockaddr, error) {
		if calls.Add(1) == 1 {
			return -1, nil, unix.EMFILE
		}
		return unix.Accept4(fd, flags)
	}

	l.ReadHandler()()

	// EMFILE、丢弃连接时的accept、最后的EAGAIN
	assert.EqualValues(t, 3, calls.Load())
	assert.EqualValues(t, 1, l.Dropped())
	assert.Zero(t, l.Accepted())
	assert.Zero(t, handled.Load())
	assert.GreaterOrEqual(t, l.spare, 0)

	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = c.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestAcceptErrorLogIsRateLimited(t *testing.T) {
	l := newLoopback(t)

	var calls atomic.Int32
	l.accept4 = func(fd int, flags int) (int, unix.Sockaddr, error) {
		calls.Add(1)
		return -1, nil, unix.EINVAL
	}

	l.ReadHandler()()
	first := l.lastLog.Load()
	assert.NotZero(t, first)

	l.ReadHandler()()
	assert.Equal(t, first, l.lastLog.Load())
	assert.EqualValues(t, 2, calls.Load())
}
