package iface

import "github.com/ikilobyte/fanpoll/eventloop"

//IDispatcher 事件分发抽象层，listener 只通过这个注册自己
type IDispatcher interface {
	AddSource(src *eventloop.Source) error
	RemoveSource(src *eventloop.Source) error
	Run(ready func()) error
	Stop()
	Close() error
}
