package listener

import (
	"time"

	"golang.org/x/sys/unix"
)

//ConnHandler 处理一个新连接，fd 的所有权交给handler
type ConnHandler func(fd int, sa unix.Sockaddr)

//Options 可选项配置，未配置时使用默认值
type Options struct {
	Name      string        // 日志中使用的名称，默认：address:port
	Backlog   int           // listen的backlog，默认：/proc/sys/net/core/somaxconn
	KeepAlive time.Duration // TCP keepalive，小于1秒表示不开启
	Handler   ConnHandler   // 默认直接关闭连接
}

type Option = func(opts *Options)

//parseOption 解析可选项
func parseOption(opts ...Option) *Options {
	options := new(Options)
	for _, opt := range opts {
		opt(options)
	}
	return options
}

//WithName 日志中的名称，例如 server、api
func WithName(name string) Option {
	return func(opts *Options) {
		opts.Name = name
	}
}

//WithBacklog 设置listen的backlog
func WithBacklog(backlog int) Option {
	return func(opts *Options) {
		opts.Backlog = backlog
	}
}

//WithTCPKeepAlive 设置TCP keepalive，accept出来的连接会继承
func WithTCPKeepAlive(duration time.Duration) Option {
	return func(opts *Options) {
		opts.KeepAlive = duration
	}
}

//WithConnHandler 自定义新连接的处理
func WithConnHandler(handler ConnHandler) Option {
	return func(opts *Options) {
		opts.Handler = handler
	}
}
