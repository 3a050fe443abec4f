//go:build linux

package shutdown

import (
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStopper struct {
	calls atomic.Int32
}

func (s *countingStopper) Stop() {
	s.calls.Add(1)
}

func sendSelf(t *testing.T, sig syscall.Signal) {
	t.Helper()
	require.NoError(t, syscall.Kill(os.Getpid(), sig))
}

func TestInstallTwice(t *testing.T) {
	s := &countingStopper{}
	require.NoError(t, Install(s))
	defer Release()

	assert.ErrorIs(t, Install(s), ErrInstalled)
}

func TestUnblockWithoutInstall(t *testing.T) {
	assert.ErrorIs(t, Unblock(), ErrNotInstalled)

	// 没有安装时Release什么都不做
	Release()
}

func TestSignalHeldUntilUnblock(t *testing.T) {
	s := &countingStopper{}
	require.NoError(t, Install(s))
	defer Release()

	sendSelf(t, syscall.SIGTERM)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, s.calls.Load())
	assert.False(t, ShuttingDown())

	require.NoError(t, Unblock())
	require.NoError(t, Unblock())

	require.Eventually(t, func() bool {
		return s.calls.Load() == 1
	}, 5*time.Second, time.Millisecond)
	assert.True(t, ShuttingDown())
}

func TestRepeatedSignalsStopOnce(t *testing.T) {
	s := &countingStopper{}
	require.NoError(t, Install(s))
	defer Release()
	require.NoError(t, Unblock())

	sendSelf(t, syscall.SIGTERM)
	require.Eventually(t, func() bool {
		return s.calls.Load() == 1
	}, 5*time.Second, time.Millisecond)

	sendSelf(t, syscall.SIGINT)
	sendSelf(t, syscall.SIGTERM)
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, s.calls.Load())
}

func TestReleaseThenReinstall(t *testing.T) {
	first := &countingStopper{}
	require.NoError(t, Install(first))
	require.NoError(t, Unblock())
	Release()
	assert.True(t, ShuttingDown())

	second := &countingStopper{}
	require.NoError(t, Install(second))
	defer Release()
	assert.False(t, ShuttingDown())
	require.NoError(t, Unblock())

	sendSelf(t, syscall.SIGINT)
	require.Eventually(t, func() bool {
		return second.calls.Load() == 1
	}, 5*time.Second, time.Millisecond)
	assert.Zero(t, first.calls.Load())
}

func TestLatchKeepsSignalsCaught(t *testing.T) {
	s := &countingStopper{}
	require.NoError(t, Install(s))
	defer Release()
	require.NoError(t, Unblock())

	Latch()
	assert.True(t, ShuttingDown())

	// 仍然被捕获，进程不会退出
	sendSelf(t, syscall.SIGINT)
	sendSelf(t, syscall.SIGTERM)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, s.calls.Load())
}
