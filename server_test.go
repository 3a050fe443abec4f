//go:build linux

package fanpoll

import (
	"net"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/ikilobyte/fanpoll/config"
	"github.com/ikilobyte/fanpoll/dispatcher"
	"github.com/ikilobyte/fanpoll/listener"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Workers = 4
	cfg.Server.Port = 0
	cfg.API.Port = 0
	return cfg
}

func startAsync(s *Server, ready func()) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- s.Start(ready)
	}()
	return ch
}

func waitStart(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("Start did not return")
		return nil
	}
}

func TestServerReadyStop(t *testing.T) {
	s, err := NewServer(testConfig())
	require.NoError(t, err)

	calls := 0
	err = waitStart(t, startAsync(s, func() {
		calls++
		s.Stop()
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	for _, l := range s.Listeners() {
		assert.Zero(t, l.Accepted())
	}
	require.NoError(t, s.Close())
	assert.Empty(t, s.Listeners())
}

func TestServerAcceptsOnBothListeners(t *testing.T) {
	s, err := NewServer(testConfig())
	require.NoError(t, err)
	defer s.Close()

	listeners := s.Listeners()
	require.Len(t, listeners, 2)
	assert.Equal(t, "server", listeners[0].Name())
	assert.Equal(t, "api", listeners[1].Name())

	ready := make(chan struct{})
	done := startAsync(s, func() { close(ready) })
	<-ready

	var wg sync.WaitGroup
	for _, l := range listeners {
		addr, err := l.Addr()
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c, err := net.Dial("tcp", addr.String())
				if assert.NoError(t, err) {
					_ = c.Close()
				}
			}()
		}
	}
	wg.Wait()

	for _, l := range listeners {
		l := l
		require.Eventually(t, func() bool {
			return l.Accepted() == 2
		}, 5*time.Second, time.Millisecond, l.Name())
	}

	s.Stop()
	require.NoError(t, waitStart(t, done))
}

func TestServerStopsOnSignal(t *testing.T) {
	s, err := NewServer(testConfig())
	require.NoError(t, err)
	defer s.Close()

	ready := make(chan struct{})
	done := startAsync(s, func() { close(ready) })
	<-ready

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))
	require.NoError(t, waitStart(t, done))

	// 清理之前再次收到信号，进程不能退出
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
	time.Sleep(50 * time.Millisecond)
	assert.True(t, s.dispatcher.Stopping())
}

func TestNewServerBindConflict(t *testing.T) {
	first, err := NewServer(testConfig())
	require.NoError(t, err)
	defer first.Close()

	addr, err := first.Listeners()[0].Addr()
	require.NoError(t, err)

	cfg := testConfig()
	cfg.API.Port = int(addr.Port())

	s, err := NewServer(cfg)
	assert.Nil(t, s)

	var bindErr *listener.BindError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "bind", bindErr.Op)
}

func TestNewServerResolveError(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Address = "not-an-ip"

	_, err := NewServer(cfg, dispatcher.WithNumWorker(1))
	var resolveErr *listener.ResolveError
	assert.ErrorAs(t, err, &resolveErr)
}
