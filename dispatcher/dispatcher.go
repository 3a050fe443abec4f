package dispatcher

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ikilobyte/fanpoll/common"
	"github.com/ikilobyte/fanpoll/eventloop"
	"github.com/ikilobyte/fanpoll/iface"
	"github.com/ikilobyte/fanpoll/util"
	"golang.org/x/sys/unix"
)

//Dispatcher 一个epoll实例，N个worker同时在上面 epoll_wait
type Dispatcher struct {
	options  *Options
	poller   iface.IPoller
	stopping atomic.Bool
	running  atomic.Bool
	finished atomic.Bool // 已经Run过或者已经Close，不能再次Run
	workers  atomic.Pointer[[]*worker]
}

//startBarrier worker的启动屏障
type startBarrier interface {
	Release(n int) error
	Wait() error
	Close() error
}

var newBarrier = func() (startBarrier, error) {
	barrier, err := eventloop.NewBarrier()
	if err != nil {
		return nil, err
	}
	return barrier, nil
}

var _ iface.IDispatcher = (*Dispatcher)(nil)

//New 创建Dispatcher
func New(opts ...Option) (*Dispatcher, error) {

	options := parseOption(opts...)

	// 默认是CPU核心数
	if options.NumWorker <= 0 {
		options.NumWorker = runtime.NumCPU()
	}

	if options.Poller == nil {
		poller, err := eventloop.NewPoller()
		if err != nil {
			return nil, err
		}
		options.Poller = poller
	}

	return &Dispatcher{
		options: options,
		poller:  options.Poller,
	}, nil
}

//AddSource 注册Source
func (d *Dispatcher) AddSource(src *eventloop.Source) error {
	return d.poller.Add(src)
}

//RemoveSource 删除Source，之后创建者才可以关闭fd
func (d *Dispatcher) RemoveSource(src *eventloop.Source) error {
	return d.poller.Remove(src)
}

//Stop 通知所有worker退出，可以重复调用，只有第一次生效
//只做一次原子操作和一次write，不加锁、不分配内存、不阻塞；Close之后调用什么都不做
func (d *Dispatcher) Stop() {
	if !d.stopping.CompareAndSwap(false, true) {
		return
	}

	if err := d.poller.Wake(); err != nil && !errors.Is(err, eventloop.ErrClosed) {
		d.options.OnFatal(fmt.Errorf("wake workers: %w", err))
	}
}

//Stopping 是否已经调用过Stop
func (d *Dispatcher) Stopping() bool {
	return d.stopping.Load()
}

//Run 启动所有worker，放行之后在当前goroutine调用一次ready，然后阻塞到所有worker退出
//每个Dispatcher只能Run一次，唤醒fd不会被清空，再次Run返回 ErrStopped
func (d *Dispatcher) Run(ready func()) error {

	if !d.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer d.running.Store(false)

	if d.finished.Load() {
		return ErrStopped
	}

	barrier, err := newBarrier()
	if err != nil {
		return err
	}
	defer func() {
		_ = barrier.Close()
	}()
	defer d.finished.Store(true)

	var (
		num      = d.options.NumWorker
		p        = newPool(d, barrier)
		workers  = make([]*worker, 0, num)
		wg       sync.WaitGroup
		spawnErr error
	)

	// 启动worker，失败之后不再继续，已启动的照常放行
	for i := 0; i < num; i++ {
		util.Logger.WithField("worker", i).Info("spawning worker")

		w := newWorker(i, p)
		wg.Add(1)
		err := d.options.Spawner(i, func() {
			defer wg.Done()
			w.Start()
		})

		if err != nil {
			wg.Done()
			p.degraded.Store(true)
			spawnErr = fmt.Errorf("%w: spawned %d of %d workers: %w", ErrDegradedStart, i, num, err)
			util.Logger.WithField("worker", i).WithError(err).Error("failed to spawn worker")
			break
		}
		workers = append(workers, w)
	}
	d.workers.Store(&workers)

	// 放行失败：已启动的worker仍阻塞在屏障上，不再join它们；
	// 标记为degraded，之后即使被放行也直接退出，不会开始轮询
	if err := barrier.Release(len(workers)); err != nil {
		p.degraded.Store(true)
		err = fmt.Errorf("%w: release %d workers: %w", ErrDegradedStart, len(workers), err)
		util.Logger.WithError(err).Error("failed to release workers")
		d.options.OnFatal(err)
		return errors.Join(spawnErr, err)
	}

	if ready != nil {
		ready()
	}

	wg.Wait()
	util.Logger.WithField("workers", len(workers)).Info("all workers stopped")

	return errors.Join(spawnErr, p.err())
}

//WorkerStates 最近一次Run中每个worker的状态
func (d *Dispatcher) WorkerStates() []common.WorkerState {
	ws := d.workers.Load()
	if ws == nil {
		return nil
	}

	states := make([]common.WorkerState, len(*ws))
	for i, w := range *ws {
		states[i] = w.State()
	}
	return states
}

//Close 释放epoll，必须在Run返回之后调用，之后的Stop不会再访问poller
func (d *Dispatcher) Close() error {
	d.stopping.Store(true)
	d.finished.Store(true)
	return d.poller.Close()
}

//pool 一次Run期间worker共享的上下文
type pool struct {
	d        *Dispatcher
	poller   iface.IPoller
	barrier  startBarrier
	degraded atomic.Bool // 有worker没能启动
	faulted  atomic.Bool // 有worker出现致命错误
	mu       sync.Mutex
	faults   []error
}

func newPool(d *Dispatcher, barrier startBarrier) *pool {
	return &pool{
		d:       d,
		poller:  d.poller,
		barrier: barrier,
	}
}

//fault 记录worker的致命错误，并通知所有worker退出
func (p *pool) fault(err error) {
	p.mu.Lock()
	p.faults = append(p.faults, err)
	p.mu.Unlock()
	p.faulted.Store(true)

	p.escalate()
}

//escalate 给自己进程发信号，和外部的退出请求走同一条路径
func (p *pool) escalate() {
	if sig := p.d.options.FaultSignal; sig != 0 {
		err := unix.Kill(os.Getpid(), sig)
		if err == nil {
			return
		}
		util.Logger.WithError(err).WithField("signal", sig).Error("failed to signal own process")
	}
	p.d.Stop()
}

func (p *pool) err() error {
	if !p.faulted.Load() {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Errorf("%w: %w", ErrWorkerFault, errors.Join(p.faults...))
}
