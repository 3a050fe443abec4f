package eventloop

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

//Handler 就绪回调，不带参数，需要的状态在构造时通过闭包绑定；必须是非阻塞、有界的一次工作
type Handler func()

//Source 一个可被轮询的资源：fd + 可选的读/写回调
//fd 属于创建者，Poller 只在注册期间引用它
type Source struct {
	fd    int
	read  atomic.Pointer[Handler]
	write atomic.Pointer[Handler]
}

//NewSource 创建Source，read/write 均可为nil，但注册前至少要设置一个
func NewSource(fd int, read, write Handler) *Source {
	s := &Source{fd: fd}
	s.SetReadHandler(read)
	s.SetWriteHandler(write)
	return s
}

func (s *Source) Fd() int {
	return s.fd
}

//SetReadHandler 设置或清除可读回调，回调内部可以修改自己所属Source的回调，下一次re-arm生效
func (s *Source) SetReadHandler(h Handler) {
	if h == nil {
		s.read.Store(nil)
		return
	}
	s.read.Store(&h)
}

//SetWriteHandler 设置或清除可写回调
func (s *Source) SetWriteHandler(h Handler) {
	if h == nil {
		s.write.Store(nil)
		return
	}
	s.write.Store(&h)
}

func (s *Source) ReadHandler() Handler {
	if h := s.read.Load(); h != nil {
		return *h
	}
	return nil
}

func (s *Source) WriteHandler() Handler {
	if h := s.write.Load(); h != nil {
		return *h
	}
	return nil
}

//Interest 根据当前设置的回调计算关注的事件
func (s *Source) Interest() Interest {
	var interest Interest
	if s.read.Load() != nil {
		interest |= Readable
	}
	if s.write.Load() != nil {
		interest |= Writable
	}
	return interest
}

//Close 关闭fd，调用前必须已经从Poller中移除
func (s *Source) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}
