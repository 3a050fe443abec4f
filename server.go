//go:build linux

// Package fanpoll 把dispatcher、监听socket和退出信号组装成一个完整的进程：
// 一个epoll实例，N个worker线程同时等待，server 和 api 两个监听端口注册在上面。
package fanpoll

import (
	"errors"
	"syscall"

	"github.com/ikilobyte/fanpoll/config"
	"github.com/ikilobyte/fanpoll/dispatcher"
	"github.com/ikilobyte/fanpoll/listener"
	"github.com/ikilobyte/fanpoll/shutdown"
	"github.com/ikilobyte/fanpoll/util"
	"golang.org/x/sys/unix"
)

type Server struct {
	cfg        *config.Config
	dispatcher *dispatcher.Dispatcher
	listeners  []*listener.Listener
	installed  bool // 信号句柄由Close释放
}

//NewServer 创建dispatcher和所有监听端口并完成注册，失败时已创建的资源都会释放
func NewServer(cfg *config.Config, opts ...dispatcher.Option) (*Server, error) {

	// epoll_wait失败时给自己发SIGTERM，和外部退出走同一条路径
	options := append([]dispatcher.Option{
		dispatcher.WithNumWorker(cfg.Workers),
		dispatcher.WithFaultSignal(syscall.SIGTERM),
	}, opts...)

	d, err := dispatcher.New(options...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		dispatcher: d,
	}

	for _, item := range []struct {
		name string
		conf config.ListenerConfig
	}{
		{"server", cfg.Server},
		{"api", cfg.API},
	} {
		l, err := listener.New(
			item.conf.Address,
			item.conf.Port,
			listener.WithName(item.name),
			listener.WithBacklog(item.conf.Backlog),
			listener.WithTCPKeepAlive(item.conf.KeepAlive),
			listener.WithConnHandler(s.onConnect),
		)
		if err != nil {
			_ = s.Close()
			return nil, err
		}

		if err := d.AddSource(l.Source); err != nil {
			_ = l.Close()
			_ = s.Close()
			return nil, err
		}
		s.listeners = append(s.listeners, l)
	}

	return s, nil
}

//Start 阻塞运行直到收到SIGINT/SIGTERM或者有worker出错
//ready 在所有worker放行、开始转发信号之后调用，可以为nil
//返回之后信号仍然被捕获，直到 Close 完成
func (s *Server) Start(ready func()) error {

	if err := shutdown.Install(s.dispatcher); err != nil {
		return err
	}
	s.installed = true
	defer shutdown.Latch()

	return s.dispatcher.Run(func() {
		_ = shutdown.Unblock()
		util.Logger.WithField("listeners", len(s.listeners)).Info("ready")

		if ready != nil {
			ready()
		}
	})
}

//Stop 可以在任何goroutine中调用
func (s *Server) Stop() {
	s.dispatcher.Stop()
}

func (s *Server) Listeners() []*listener.Listener {
	return s.listeners
}

//Close 按注册的逆序移除并关闭监听端口，最后释放dispatcher，必须在Start返回之后调用
func (s *Server) Close() error {
	var errs []error

	for i := len(s.listeners) - 1; i >= 0; i-- {
		l := s.listeners[i]
		if err := s.dispatcher.RemoveSource(l.Source); err != nil {
			errs = append(errs, err)
		}
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.listeners = nil

	if err := s.dispatcher.Close(); err != nil {
		errs = append(errs, err)
	}

	if s.installed {
		shutdown.Release()
		s.installed = false
	}
	return errors.Join(errs...)
}

//onConnect 连接的协议处理不在这里，记录之后直接关闭
func (s *Server) onConnect(fd int, sa unix.Sockaddr) {
	util.Logger.WithField("remote", util.SockaddrToAddrPort(sa).String()).Debug("connection accepted")
	_ = unix.Close(fd)
}
