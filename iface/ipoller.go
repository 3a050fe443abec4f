package iface

import "github.com/ikilobyte/fanpoll/eventloop"

//IPoller 就绪通知后端，dispatcher 只依赖这几个原语
type IPoller interface {
	Add(src *eventloop.Source) error   // 注册，边缘触发 + oneshot
	Rearm(src *eventloop.Source) error // 处理完之后重新激活
	Remove(src *eventloop.Source) error
	Wait(events []eventloop.Event) (int, error) // 阻塞等待一批就绪事件
	Wake() error                                // 必须是async-signal-safe的，广播给所有Wait
	Close() error
}
