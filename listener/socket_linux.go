//go:build linux

package listener

import (
	"net"
	"net/netip"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

//resolve 只接受数字形式的地址，不做DNS查询
func resolve(address string, port int) (unix.Sockaddr, int, error) {

	if port < 0 || port > 65535 {
		return nil, 0, &ResolveError{Address: address, Port: port, Err: strconv.ErrRange}
	}

	addr, err := netip.ParseAddr(address)
	if err != nil {
		return nil, 0, &ResolveError{Address: address, Port: port, Err: err}
	}

	if addr.Is4() {
		return &unix.SockaddrInet4{Port: port, Addr: addr.As4()}, unix.AF_INET, nil
	}

	sa := &unix.SockaddrInet6{Port: port, Addr: addr.As16()}
	if zone := addr.Zone(); zone != "" {
		if id, err := strconv.Atoi(zone); err == nil {
			sa.ZoneId = uint32(id)
		} else {
			ifi, err := net.InterfaceByName(zone)
			if err != nil {
				return nil, 0, &ResolveError{Address: address, Port: port, Err: err}
			}
			sa.ZoneId = uint32(ifi.Index)
		}
	}
	return sa, unix.AF_INET6, nil
}

//createSocket 使用系统调用创建非阻塞的监听socket，任何一步失败都会关闭fd
func createSocket(address string, port int, options *Options) (int, error) {

	sa, family, err := resolve(address, port)
	if err != nil {
		return -1, err
	}

	fail := func(fd int, op string, err error) (int, error) {
		if fd >= 0 {
			_ = unix.Close(fd)
		}
		return -1, &BindError{Op: op, Address: address, Port: port, Err: err}
	}

	// 创建
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return fail(-1, "socket", err)
	}

	// 复用TIME_WAIT状态的端口
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail(fd, "setsockopt", err)
	}

	// 设置属性
	if secs := int(options.KeepAlive / time.Second); secs >= 1 {
		if err := setKeepAlive(fd, secs); err != nil {
			return fail(fd, "setsockopt", err)
		}
	}

	// 绑定端口
	if err := unix.Bind(fd, sa); err != nil {
		return fail(fd, "bind", err)
	}

	// 监听端口
	if err := unix.Listen(fd, options.Backlog); err != nil {
		return fail(fd, "listen", err)
	}

	return fd, nil
}

//setKeepAlive 设置tcp属性
func setKeepAlive(fd, secs int) error {
	if secs <= 0 {
		return nil
	}

	// 给这个fd开启keepalive
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return err
	}

	// 发送keepalive探测包的频率，单位是秒，
	// see /proc/sys/net/ipv4/tcp_keepalive_intvl
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, secs); err != nil {
		return err
	}

	// 多少秒后发送第一次keepalive探测包，默认是7200秒，
	// see /proc/sys/net/ipv4/tcp_keepalive_time
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, secs); err != nil {
		return err
	}

	// 连续多少次对方没有回复ACK的话，会被断开连接
	// see /proc/sys/net/ipv4/tcp_keepalive_probes
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPCNT, 3)
}
