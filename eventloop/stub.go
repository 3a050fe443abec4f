//go:build !linux

package eventloop

const MaxEvents = 100

//Poller 目前只实现了epoll
type Poller struct{}

func NewPoller() (*Poller, error) {
	return nil, &InitError{Op: "epoll_create1", Err: ErrUnsupported}
}

func (p *Poller) Add(src *Source) error {
	return &RegistrationError{Op: "add", Fd: src.Fd(), Err: ErrUnsupported}
}

func (p *Poller) Rearm(src *Source) error {
	return &RegistrationError{Op: "rearm", Fd: src.Fd(), Err: ErrUnsupported}
}

func (p *Poller) Remove(src *Source) error {
	return &RegistrationError{Op: "remove", Fd: src.Fd(), Err: ErrUnsupported}
}

func (p *Poller) Wait(events []Event) (int, error) { return 0, ErrUnsupported }
func (p *Poller) Wake() error                      { return ErrUnsupported }
func (p *Poller) Close() error                     { return ErrUnsupported }

type Barrier struct{}

func NewBarrier() (*Barrier, error) {
	return nil, &InitError{Op: "eventfd barrier", Err: ErrUnsupported}
}

func (b *Barrier) Release(n int) error { return ErrUnsupported }
func (b *Barrier) Wait() error         { return ErrUnsupported }
func (b *Barrier) Close() error        { return ErrUnsupported }
