//go:build linux

package eventloop

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

//Barrier 启动屏障，EFD_SEMAPHORE 模式的eventfd：Release(n) 之后正好放行n个Wait
type Barrier struct {
	fd int
}

func NewBarrier() (*Barrier, error) {
	fd, err := unix.Eventfd(0, unix.EFD_SEMAPHORE|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, &InitError{Op: "eventfd barrier", Err: err}
	}
	return &Barrier{fd: fd}, nil
}

//Release 放行n个等待者
func (b *Barrier) Release(n int) error {
	if n <= 0 {
		return nil
	}

	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], uint64(n))
	_, err := unix.Write(b.fd, buf[:])
	return err
}

//Wait 阻塞直到被放行
func (b *Barrier) Wait() error {
	var buf [8]byte
	for {
		_, err := unix.Read(b.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		return err
	}
}

func (b *Barrier) Close() error {
	return unix.Close(b.fd)
}
