package dispatcher

import (
	"fmt"
	"sync/atomic"

	"github.com/ikilobyte/fanpoll/common"
	"github.com/ikilobyte/fanpoll/eventloop"
	"github.com/ikilobyte/fanpoll/util"
	"github.com/sirupsen/logrus"
)

type worker struct {
	id    int
	pool  *pool
	state atomic.Int32
	log   *logrus.Entry
}

//newWorker 创建worker
func newWorker(id int, p *pool) *worker {
	return &worker{
		id:   id,
		pool: p,
		log:  util.Logger.WithField("worker", id),
	}
}

func (w *worker) State() common.WorkerState {
	return common.WorkerState(w.state.Load())
}

func (w *worker) setState(state common.WorkerState) {
	w.state.Store(int32(state))
}

//Start 等待放行，然后循环 epoll_wait 直到收到退出通知
func (w *worker) Start() {

	defer func() {
		w.setState(common.Stopped)
		w.log.Info("worker stopped")
	}()

	if err := w.pool.barrier.Wait(); err != nil {
		w.pool.d.options.OnFatal(fmt.Errorf("worker %d wait for start: %w", w.id, err))
		return
	}

	// 有worker没能启动，这次Run已经失败了
	if w.pool.degraded.Load() {
		return
	}

	w.setState(common.Running)
	events := make([]eventloop.Event, eventloop.MaxEvents)

	for {
		n, err := w.pool.poller.Wait(events)
		if err != nil {
			w.log.WithError(err).Error("failed to wait for events")
			w.pool.fault(fmt.Errorf("worker %d wait: %w", w.id, err))
			return
		}

		// 收到退出通知也要把这一批处理完
		stop := false
		for i := 0; i < n; i++ {
			if events[i].Kind == eventloop.ShutdownRequested {
				stop = true
				continue
			}

			if !w.handle(events[i]) {
				return
			}
		}

		if stop {
			return
		}
	}
}

//handle 执行回调然后重新激活，re-arm失败返回false
func (w *worker) handle(ev eventloop.Event) bool {
	src := ev.Source

	if ev.Ready&eventloop.Readable != 0 {
		if h := src.ReadHandler(); h != nil {
			h()
		}
	}

	if ev.Ready&eventloop.Writable != 0 {
		if h := src.WriteHandler(); h != nil {
			h()
		}
	}

	// 没有re-arm的fd再也不会有事件，只能当作致命错误
	if err := w.pool.poller.Rearm(src); err != nil {
		w.log.WithError(err).WithField("fd", src.Fd()).Error("failed to re-arm source")
		w.pool.d.options.OnFatal(err)
		w.pool.fault(err)
		return false
	}
	return true
}
