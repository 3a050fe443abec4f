//go:build linux

// Package listener 把一个已经bind、listen的非阻塞socket包装成 eventloop.Source，
// 可读时循环accept，把新连接交给 ConnHandler。
package listener

import (
	"fmt"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/ikilobyte/fanpoll/eventloop"
	"github.com/ikilobyte/fanpoll/util"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

//errorLogInterval 同一个listener的accept错误日志最多每秒一条
const errorLogInterval = time.Second

type Listener struct {
	*eventloop.Source
	name     string
	handler  ConnHandler
	accepted atomic.Int64
	dropped  atomic.Int64
	spare    int          // 预留的fd，EMFILE时用来接受并立即关闭连接
	lastLog  atomic.Int64 // 上一次accept错误日志的时间，UnixNano
	accept4  func(fd int, flags int) (int, unix.Sockaddr, error)
	log      *logrus.Entry
}

//New 创建监听socket，返回的Source已经设置好accept回调，可以直接注册到dispatcher
func New(address string, port int, opts ...Option) (*Listener, error) {

	options := parseOption(opts...)

	if options.Backlog <= 0 {
		options.Backlog = util.MaxListenerBacklog()
	}

	if options.Name == "" {
		options.Name = fmt.Sprintf("%s:%d", address, port)
	}

	if options.Handler == nil {
		options.Handler = closeConn
	}

	fd, err := createSocket(address, port, options)
	if err != nil {
		return nil, err
	}

	l := &Listener{
		name:    options.Name,
		handler: options.Handler,
		spare:   openSpare(),
		accept4: unix.Accept4,
		log: util.Logger.WithFields(logrus.Fields{
			"listener": options.Name,
			"fd":       fd,
		}),
	}
	l.Source = eventloop.NewSource(fd, l.accept, nil)

	l.log.Info("listening")
	return l, nil
}

func (l *Listener) Name() string {
	return l.name
}

//Addr 实际绑定的地址，端口为0时可以拿到内核分配的端口
func (l *Listener) Addr() (netip.AddrPort, error) {
	sa, err := unix.Getsockname(l.Fd())
	if err != nil {
		return netip.AddrPort{}, err
	}
	return util.SockaddrToAddrPort(sa), nil
}

//Accepted 已经accept的连接数
func (l *Listener) Accepted() int64 {
	return l.accepted.Load()
}

//Dropped fd耗尽时被直接关闭的连接数
func (l *Listener) Dropped() int64 {
	return l.dropped.Load()
}

//accept 边缘触发，必须一直accept到EAGAIN
func (l *Listener) accept() {
	for {
		connFd, sa, err := l.accept4(l.Fd(), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			switch err {
			case unix.EAGAIN:
				return
			case unix.EINTR, unix.ECONNABORTED:
				continue
			case unix.EMFILE, unix.ENFILE:
				l.logError(err)
				// 队列里的连接不取走的话re-arm之后会立刻再次就绪
				if l.dropOne() {
					continue
				}
				return
			}
			l.logError(err)
			return
		}

		l.accepted.Add(1)
		l.handler(connFd, sa)
	}
}

//dropOne 释放预留的fd，接受一个连接后立即关闭，再重新预留
func (l *Listener) dropOne() bool {
	if l.spare < 0 {
		return false
	}
	_ = unix.Close(l.spare)
	l.spare = -1

	connFd, _, err := l.accept4(l.Fd(), unix.SOCK_CLOEXEC)
	if err == nil {
		_ = unix.Close(connFd)
		l.dropped.Add(1)
	}

	l.spare = openSpare()
	return err == nil
}

func (l *Listener) logError(err error) {
	now := time.Now().UnixNano()
	last := l.lastLog.Load()
	if now-last < int64(errorLogInterval) || !l.lastLog.CompareAndSwap(last, now) {
		return
	}
	l.log.WithError(err).Error("accept error")
}

//Close 关闭监听socket，调用前必须已经从dispatcher中移除
func (l *Listener) Close() error {
	if l.spare >= 0 {
		_ = unix.Close(l.spare)
		l.spare = -1
	}
	l.log.Info("closed")
	return l.Source.Close()
}

func openSpare() int {
	fd, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1
	}
	return fd
}

func closeConn(fd int, sa unix.Sockaddr) {
	_ = unix.Close(fd)
}
