package dispatcher

import (
	"syscall"

	"github.com/ikilobyte/fanpoll/iface"
	"github.com/ikilobyte/fanpoll/util"
)

//Options 可选项配置，未配置时使用默认值
type Options struct {
	NumWorker   int             // worker数量，默认：CPU核心数
	Poller      iface.IPoller   // 就绪通知后端，默认：epoll
	Spawner     Spawner         // 创建worker的方式，默认：goroutine + LockOSThread
	FaultSignal syscall.Signal  // worker出现致命错误时发给自己进程的信号，0表示直接调用Stop
	OnFatal     func(err error) // 无法恢复的错误，默认：记录日志并退出进程
}

type Option = func(opts *Options)

//parseOption 解析可选项
func parseOption(opts ...Option) *Options {
	options := new(Options)
	for _, opt := range opts {
		opt(options)
	}

	if options.Spawner == nil {
		options.Spawner = DefaultSpawner
	}

	if options.OnFatal == nil {
		options.OnFatal = func(err error) {
			util.Logger.WithError(err).Fatal("dispatcher: unrecoverable error")
		}
	}

	return options
}

//WithNumWorker worker数量，<=0 时使用CPU核心数
func WithNumWorker(numWorker int) Option {
	return func(opts *Options) {
		opts.NumWorker = numWorker
	}
}

//WithPoller 使用自定义的就绪通知后端
func WithPoller(poller iface.IPoller) Option {
	return func(opts *Options) {
		opts.Poller = poller
	}
}

//WithSpawner 自定义worker的创建方式
func WithSpawner(spawner Spawner) Option {
	return func(opts *Options) {
		opts.Spawner = spawner
	}
}

//WithFaultSignal epoll_wait失败时给自己进程发送的信号，需要配合 shutdown 包一起使用
func WithFaultSignal(sig syscall.Signal) Option {
	return func(opts *Options) {
		opts.FaultSignal = sig
	}
}

//WithFatalHandler 替换默认的致命错误处理
func WithFatalHandler(fn func(err error)) Option {
	return func(opts *Options) {
		opts.OnFatal = fn
	}
}
