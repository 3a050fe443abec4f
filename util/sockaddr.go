package util

import (
	"net/netip"

	"golang.org/x/sys/unix"
)

//SockaddrToAddrPort unix.Sockaddr 转换为 netip.AddrPort，非IP地址返回零值
func SockaddrToAddrPort(sa unix.Sockaddr) netip.AddrPort {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr), uint16(sa.Port))
	}
	return netip.AddrPort{}
}
