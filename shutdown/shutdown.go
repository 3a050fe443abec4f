// Package shutdown 把 SIGINT/SIGTERM 转发到正在运行的dispatcher。
//
// 生命周期：Install 在启动worker之前调用，此时信号只会进入缓冲的channel而不会被处理；
// Unblock 在dispatcher的ready回调中调用，开始转发；Latch 在Run返回之后调用，
// 之后的信号仍然被捕获但直接丢弃；Release 在所有资源释放之后调用，恢复信号的默认行为。
// 全局句柄只在 Install/Release 中写入，没有其他并发写。
package shutdown

import (
	"errors"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/ikilobyte/fanpoll/util"
)

var (
	ErrInstalled    = errors.New("shutdown: handle already installed")
	ErrNotInstalled = errors.New("shutdown: handle not installed")
)

//Stopper 收到退出信号时调用，必须可以重复调用
type Stopper interface {
	Stop()
}

//Signals 会被转发的信号
var Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

var handle struct {
	stopper Stopper
	ch      chan os.Signal
	done    chan struct{}
	started bool
	latch   atomic.Bool // 保证只进入一次Stop
}

//Install 开始捕获退出信号，但是在 Unblock 之前不会调用Stop
func Install(s Stopper) error {
	if handle.stopper != nil {
		return ErrInstalled
	}

	handle.stopper = s
	handle.ch = make(chan os.Signal, 1)
	handle.done = make(chan struct{})
	handle.started = false
	handle.latch.Store(false)

	signal.Notify(handle.ch, Signals...)
	return nil
}

//Unblock 开始转发信号，之前到达的信号也会在这时被处理
func Unblock() error {
	if handle.stopper == nil {
		return ErrNotInstalled
	}
	if handle.started {
		return nil
	}
	handle.started = true

	go forward(handle.ch, handle.done, handle.stopper)
	return nil
}

func forward(ch <-chan os.Signal, done chan<- struct{}, s Stopper) {
	defer close(done)

	for sig := range ch {
		if !handle.latch.CompareAndSwap(false, true) {
			continue
		}
		util.Logger.WithField("signal", sig.String()).Info("shutting down")
		s.Stop()
	}
}

//ShuttingDown 是否已经处理过退出信号（或者已经Release）
func ShuttingDown() bool {
	return handle.latch.Load()
}

//Latch 不再调用Stop，但信号仍然被捕获，清理期间再次Ctrl-C不会杀死进程
func Latch() {
	handle.latch.Store(true)
}

//Release 停止转发并清空句柄，之后的信号恢复默认行为
func Release() {
	if handle.stopper == nil {
		return
	}

	// 防止清理期间还有信号进入Stop
	handle.latch.Store(true)
	signal.Stop(handle.ch)
	close(handle.ch)

	if handle.started {
		<-handle.done
	}

	handle.stopper = nil
	handle.ch = nil
	handle.done = nil
	handle.started = false
}
