package listener

import "fmt"

//ResolveError 地址无法解析（只接受数字形式的IP和端口）
type ResolveError struct {
	Address string
	Port    int
	Err     error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("listener: resolve %s port %d: %v", e.Address, e.Port, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

//BindError 创建监听socket失败，Op 是失败的那一步
type BindError struct {
	Op      string
	Address string
	Port    int
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("listener: %s %s port %d: %v", e.Op, e.Address, e.Port, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}
