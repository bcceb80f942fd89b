//go:build !unix

package framesock

import "net"

// boundSocket only records the resolved address on platforms without
// separate bind and listen calls; bind errors surface from Start there.
type boundSocket struct {
	addr *net.TCPAddr
}

func bindSocket(address string) (*boundSocket, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, err
	}
	return &boundSocket{addr: tcpAddr}, nil
}

// listen ignores backlog; the runtime picks the system default.
func (s *boundSocket) listen(backlog int) (net.Listener, error) {
	return net.ListenTCP("tcp", s.addr)
}

func (s *boundSocket) close() error {
	return nil
}
