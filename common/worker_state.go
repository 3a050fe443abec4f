package common

//WorkerState worker 的生命周期状态
type WorkerState int32

const (
	AwaitingStart WorkerState = iota // 等待启动屏障放行
	Running                          // 正在 epoll_wait / 处理事件
	Stopped                          // 已退出，等待 join
)

func (s WorkerState) String() string {
	switch s {
	case AwaitingStart:
		return "awaiting-start"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}
