package eventloop

import "strings"

//Interest 关注/就绪的事件集合
type Interest uint32

const (
	Readable Interest = 1 << iota
	Writable
)

func (i Interest) String() string {
	if i == 0 {
		return "none"
	}
	var parts []string
	if i&Readable != 0 {
		parts = append(parts, "read")
	}
	if i&Writable != 0 {
		parts = append(parts, "write")
	}
	return strings.Join(parts, "|")
}

type EventKind uint8

const (
	SourceReady       EventKind = iota // 某个Source就绪
	ShutdownRequested                  // 唤醒fd被写入，需要退出
)

//Event Wait 返回的就绪结果
type Event struct {
	Kind   EventKind
	Source *Source  // 仅 SourceReady 时有效
	Ready  Interest // 仅 SourceReady 时有效
}
