//go:build unix

package framesock

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// boundSocket is a TCP socket that has been bound but is not listening yet.
// Splitting bind from listen lets Setup report address conflicts before
// Start commits to a backlog.
type boundSocket struct {
	fd   int
	addr *net.TCPAddr
}

func bindSocket(address string) (*boundSocket, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, err
	}

	domain, sa, err := sockaddr(tcpAddr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	unix.CloseOnExec(fd)

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("setsockopt", err)
	}

	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("bind", err)
	}

	local, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("getsockname", err)
	}

	return &boundSocket{fd: fd, addr: tcpAddrOf(local)}, nil
}

// listen starts listening with the given backlog and hands the socket over
// to the runtime poller. The boundSocket must not be used afterwards.
func (s *boundSocket) listen(backlog int) (net.Listener, error) {
	if err := unix.Listen(s.fd, backlog); err != nil {
		return nil, os.NewSyscallError("listen", err)
	}

	// net.FileListener duplicates the descriptor, so the file is closed either way.
	f := os.NewFile(uintptr(s.fd), "framesock-listener")
	s.fd = -1
	defer f.Close()

	return net.FileListener(f)
}

func (s *boundSocket) close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}

func sockaddr(addr *net.TCPAddr) (int, unix.Sockaddr, error) {
	if addr.IP == nil || addr.IP.To4() != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		if addr.IP != nil {
			copy(sa.Addr[:], addr.IP.To4())
		}
		return unix.AF_INET, sa, nil
	}

	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	if addr.Zone != "" {
		ifi, err := net.InterfaceByName(addr.Zone)
		if err != nil {
			return 0, nil, err
		}
		sa.ZoneId = uint32(ifi.Index)
	}
	return unix.AF_INET6, sa, nil
}

func tcpAddrOf(sa unix.Sockaddr) *net.TCPAddr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, sa.Addr[:])
		return &net.TCPAddr{IP: ip, Port: sa.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, sa.Addr[:])
		return &net.TCPAddr{IP: ip, Port: sa.Port}
	default:
		return &net.TCPAddr{}
	}
}
