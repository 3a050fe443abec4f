// Package poller 提供一个纯内存的 iface.IPoller 实现，
// 模拟 epoll 的边缘触发 + oneshot 语义，就绪事件由调用方通过 Trigger 注入，
// 用于在不依赖内核时序的情况下测试 dispatcher。
package poller

import (
	"sync"

	"github.com/ikilobyte/fanpoll/eventloop"
	"github.com/ikilobyte/fanpoll/util"
)

type entry struct {
	armed      bool
	interest   eventloop.Interest   // 最近一次激活时关注的事件
	pending    eventloop.Interest   // 未激活期间到达的就绪，re-arm后补发
	history    []eventloop.Interest // 每次Add/Rearm时的关注事件
	deliveries int
}

//Memory 内存实现的poller
type Memory struct {
	mu       sync.Mutex
	cond     *sync.Cond
	entries  map[*eventloop.Source]*entry
	ready    *util.Queue // eventloop.Event
	woken    bool
	closed   bool
	waitErr  error
	rearmErr error
}

func NewMemory() *Memory {
	m := &Memory{
		entries: make(map[*eventloop.Source]*entry),
		ready:   util.NewQueue(),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *Memory) Add(src *eventloop.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return &eventloop.RegistrationError{Op: "add", Fd: src.Fd(), Err: eventloop.ErrClosed}
	}

	interest := src.Interest()
	if interest == 0 {
		return &eventloop.RegistrationError{Op: "add", Fd: src.Fd(), Err: eventloop.ErrNoInterest}
	}

	if _, ok := m.entries[src]; ok {
		return &eventloop.RegistrationError{Op: "add", Fd: src.Fd(), Err: eventloop.ErrAlreadyRegistered}
	}

	m.entries[src] = &entry{
		armed:    true,
		interest: interest,
		history:  []eventloop.Interest{interest},
	}
	return nil
}

func (m *Memory) Rearm(src *eventloop.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rearmErr != nil {
		return &eventloop.RegistrationError{Op: "rearm", Fd: src.Fd(), Err: m.rearmErr}
	}

	e, ok := m.entries[src]
	if !ok {
		return &eventloop.RegistrationError{Op: "rearm", Fd: src.Fd(), Err: eventloop.ErrNotRegistered}
	}

	e.interest = src.Interest()
	e.history = append(e.history, e.interest)
	e.armed = true

	if ready := e.pending & e.interest; ready != 0 {
		e.pending &^= ready
		m.deliver(src, e, ready)
	}
	return nil
}

func (m *Memory) Remove(src *eventloop.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[src]; !ok {
		return &eventloop.RegistrationError{Op: "remove", Fd: src.Fd(), Err: eventloop.ErrNotRegistered}
	}
	delete(m.entries, src)
	return nil
}

//Trigger 模拟一次就绪边沿，未激活时记为pending，等re-arm之后再投递
func (m *Memory) Trigger(src *eventloop.Source, ready eventloop.Interest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[src]
	if !ok {
		return eventloop.ErrNotRegistered
	}

	ready &= e.interest
	if ready == 0 {
		return nil
	}

	if !e.armed {
		e.pending |= ready
		return nil
	}
	m.deliver(src, e, ready)
	return nil
}

func (m *Memory) deliver(src *eventloop.Source, e *entry, ready eventloop.Interest) {
	e.armed = false
	e.deliveries++
	m.ready.Push(eventloop.Event{
		Kind:   eventloop.SourceReady,
		Source: src,
		Ready:  ready,
	})
	m.cond.Signal()
}

func (m *Memory) Wait(events []eventloop.Event) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.ready.Len() == 0 && !m.woken && !m.closed && m.waitErr == nil {
		m.cond.Wait()
	}

	if m.waitErr != nil {
		err := m.waitErr
		m.waitErr = nil
		return 0, err
	}

	if m.closed {
		return 0, eventloop.ErrClosed
	}

	count := 0
	if m.woken && len(events) > 0 {
		events[count] = eventloop.Event{Kind: eventloop.ShutdownRequested}
		count++
	}

	for count < len(events) && m.ready.Len() > 0 {
		events[count] = m.ready.Pop().(eventloop.Event)
		count++
	}
	return count, nil
}

//Wake 与epoll的唤醒fd一样，一旦唤醒就一直保持
func (m *Memory) Wake() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return eventloop.ErrClosed
	}
	m.woken = true
	m.cond.Broadcast()
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return eventloop.ErrClosed
	}
	m.closed = true
	m.cond.Broadcast()
	return nil
}

//FailNextWait 下一次Wait返回err
func (m *Memory) FailNextWait(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waitErr = err
	m.cond.Signal()
}

//FailRearm 之后所有Rearm都返回err
func (m *Memory) FailRearm(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rearmErr = err
}

//History 某个Source每次激活时的关注事件
func (m *Memory) History(src *eventloop.Source) []eventloop.Interest {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[src]
	if !ok {
		return nil
	}
	return append([]eventloop.Interest(nil), e.history...)
}

//Deliveries 某个Source被投递的次数
func (m *Memory) Deliveries(src *eventloop.Source) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[src]; ok {
		return e.deliveries
	}
	return 0
}

//Armed 某个Source当前是否处于激活状态
func (m *Memory) Armed(src *eventloop.Source) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[src]; ok {
		return e.armed
	}
	return false
}
