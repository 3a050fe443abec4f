//go:build linux

package eventloop

import (
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

//MaxEvents 单次 epoll_wait 最多返回的事件数
const MaxEvents = 100

//Poller 多个worker共享的一个epoll实例
type Poller struct {
	epfd    int      // eventpoll fd
	wakefd  int      // 退出通知用的eventfd
	wakebuf [8]byte  // 预先分配，Wake 时不需要分配内存
	sources sync.Map // int32(fd) -> *Source
	closed  atomic.Bool
}

//NewPoller 创建epoll，并注册唤醒用的eventfd
func NewPoller() (*Poller, error) {

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, &InitError{Op: "epoll_create1", Err: err}
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, &InitError{Op: "eventfd", Err: err}
	}

	// 水平触发、非oneshot，并且永远不读取：写入一次之后所有worker的epoll_wait都会返回
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakefd),
	}); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, &InitError{Op: "epoll_ctl wakefd", Err: err}
	}

	p := &Poller{
		epfd:   epfd,
		wakefd: wakefd,
	}
	binary.NativeEndian.PutUint64(p.wakebuf[:], 1)

	return p, nil
}

//Add 注册Source，边缘触发 + oneshot
func (p *Poller) Add(src *Source) error {
	fd := src.Fd()
	if p.closed.Load() {
		return &RegistrationError{Op: "add", Fd: fd, Err: ErrClosed}
	}

	interest := src.Interest()
	if interest == 0 {
		return &RegistrationError{Op: "add", Fd: fd, Err: ErrNoInterest}
	}

	// 先放入表中，ADD成功后事件可能立刻被其他worker取到
	if _, loaded := p.sources.LoadOrStore(int32(fd), src); loaded {
		return &RegistrationError{Op: "add", Fd: fd, Err: ErrAlreadyRegistered}
	}

	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: interestToEpoll(interest),
		Fd:     int32(fd),
	}); err != nil {
		p.sources.Delete(int32(fd))
		return &RegistrationError{Op: "add", Fd: fd, Err: err}
	}
	return nil
}

//Rearm 按回调的当前状态重新计算关注事件并重新激活
func (p *Poller) Rearm(src *Source) error {
	fd := src.Fd()
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: interestToEpoll(src.Interest()),
		Fd:     int32(fd),
	}); err != nil {
		return &RegistrationError{Op: "rearm", Fd: fd, Err: err}
	}
	return nil
}

//Remove 删除某个Source
func (p *Poller) Remove(src *Source) error {
	fd := src.Fd()
	if v, ok := p.sources.Load(int32(fd)); !ok || v.(*Source) != src {
		return &RegistrationError{Op: "remove", Fd: fd, Err: ErrNotRegistered}
	}

	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return &RegistrationError{Op: "remove", Fd: fd, Err: err}
	}
	p.sources.Delete(int32(fd))
	return nil
}

//Wait 阻塞等待一批就绪事件，返回写入events的数量
func (p *Poller) Wait(events []Event) (int, error) {

	var raw [MaxEvents]unix.EpollEvent
	size := len(events)
	if size > MaxEvents {
		size = MaxEvents
	}

	for {
		n, err := unix.EpollWait(p.epfd, raw[:size], -1)
		if err != nil {
			// runtime 的抢占信号也会打断 epoll_wait
			if err == unix.EINTR {
				continue
			}
			return 0, err
		}

		count := 0
		for i := 0; i < n; i++ {
			ev := raw[i]

			if int(ev.Fd) == p.wakefd {
				events[count] = Event{Kind: ShutdownRequested}
				count++
				continue
			}

			// 已经被Remove
			v, ok := p.sources.Load(ev.Fd)
			if !ok {
				continue
			}

			events[count] = Event{
				Kind:   SourceReady,
				Source: v.(*Source),
				Ready:  epollToInterest(ev.Events),
			}
			count++
		}
		return count, nil
	}
}

//Wake 通知所有worker退出，只有一次write，可以在任何goroutine中调用
//Close 之后返回 ErrClosed，不会写入已经被复用的fd
func (p *Poller) Wake() error {
	if p.closed.Load() {
		return ErrClosed
	}

	_, err := unix.Write(p.wakefd, p.wakebuf[:])
	if err == unix.EAGAIN {
		// 计数器已满，说明早就写过了
		return nil
	}
	return err
}

//Close 关闭eventfd和epoll
func (p *Poller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	// wakefd 关闭时会自动从epoll中移除
	return errors.Join(unix.Close(p.wakefd), unix.Close(p.epfd))
}

func interestToEpoll(interest Interest) uint32 {
	events := uint32(unix.EPOLLET | unix.EPOLLONESHOT)
	if interest&Readable != 0 {
		events |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if interest&Writable != 0 {
		events |= unix.EPOLLOUT
	}
	return events
}

//epollToInterest 错误和挂断同时视为可读可写，交给回调自己去发现
func epollToInterest(events uint32) Interest {
	var interest Interest
	if events&unix.EPOLLIN != 0 {
		interest |= Readable
	}
	if events&unix.EPOLLOUT != 0 {
		interest |= Writable
	}
	if events&(unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		interest |= Readable | Writable
	}
	return interest
}
