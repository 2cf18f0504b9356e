package turnloop

import (
	"net"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// NetworkAddress names a TCP host:port or a "unix:/path/to/socket", so the
// same Connect/Listen surface works over loopback TCP or a local socket.
type NetworkAddress struct {
	network string // "tcp" or "unix"
	host    string
	port    int
	path    string
}

// ParseAddress resolves a "host:port" or "unix:/path" string. DNS resolution
// (for non-numeric hosts) is performed synchronously via net.ResolveIPAddr,
// since spec's Non-goals exclude implementing an async resolver.
func ParseAddress(hostport string) (NetworkAddress, error) {
	if path, ok := strings.CutPrefix(hostport, "unix:"); ok {
		return NetworkAddress{network: "unix", path: path}, nil
	}
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return NetworkAddress{}, &AddressResolutionError{HostPort: hostport, Cause: err}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return NetworkAddress{}, &AddressResolutionError{HostPort: hostport, Cause: err}
	}
	ip, err := net.ResolveIPAddr("ip", host)
	if err != nil {
		return NetworkAddress{}, &AddressResolutionError{HostPort: hostport, Cause: err}
	}
	return NetworkAddress{network: "tcp", host: ip.IP.String(), port: port}, nil
}

// netIPString renders a 4- or 16-byte raw address as dotted-quad/hex text.
func netIPString(raw []byte) string {
	if len(raw) == 4 {
		return net.IPv4(raw[0], raw[1], raw[2], raw[3]).String()
	}
	return net.IP(raw).String()
}

func (a NetworkAddress) sockaddr() (unix.Sockaddr, int, error) {
	switch a.network {
	case "unix":
		return &unix.SockaddrUnix{Name: a.path}, unix.AF_UNIX, nil
	default:
		ip := net.ParseIP(a.host)
		if ip4 := ip.To4(); ip4 != nil {
			var addr [4]byte
			copy(addr[:], ip4)
			return &unix.SockaddrInet4{Port: a.port, Addr: addr}, unix.AF_INET, nil
		}
		var addr [16]byte
		copy(addr[:], ip.To16())
		return &unix.SockaddrInet6{Port: a.port, Addr: addr}, unix.AF_INET6, nil
	}
}

// Connect opens an asynchronous, non-blocking connection to the address.
// The connect(2) readiness race is resolved by checking SO_ERROR once the
// socket reports writable, per SPEC_FULL.md's resolution of the connect
// Open Question: a writable-but-failed socket is not a successful connect.
func (a NetworkAddress) Connect(l *Loop) Promise[*Stream] {
	p, f := NewPromiseAndFulfiller[*Stream](l)

	sa, family, err := a.sockaddr()
	if err != nil {
		f.Reject(&IOError{Op: "connect: resolve", Cause: err})
		return p
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		f.Reject(&IOError{Op: "connect: socket", Cause: err})
		return p
	}
	if err := setNonblock(fd); err != nil {
		_ = closeFD(fd)
		f.Reject(&IOError{Op: "connect: nonblock", Cause: err})
		return p
	}

	err = unix.Connect(fd, sa)
	if err == nil {
		f.Fulfill(newStream(l, fd))
		return p
	}
	if err != unix.EINPROGRESS {
		_ = closeFD(fd)
		f.Reject(&IOError{Op: "connect", Cause: err})
		return p
	}

	cancel, rerr := l.reactor.notifyWhenWritable(fd, func(ioErr error) {
		if ioErr != nil {
			_ = closeFD(fd)
			f.Reject(&IOError{Op: "connect", Cause: ioErr})
			return
		}
		errno, gerr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if gerr != nil {
			_ = closeFD(fd)
			f.Reject(&IOError{Op: "connect: getsockopt", Cause: gerr})
			return
		}
		if errno != 0 {
			_ = closeFD(fd)
			f.Reject(&IOError{Op: "connect", Cause: unix.Errno(uintptr(errno))})
			return
		}
		f.Fulfill(newStream(l, fd))
	})
	if rerr != nil {
		_ = closeFD(fd)
		f.Reject(&IOError{Op: "connect: register", Cause: rerr})
		return p
	}

	return Promise[*Stream]{node: &wrapperNode{
		inner:   p.node,
		dropper: cancel,
	}}
}
