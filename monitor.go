//go:build linux

package uevent

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/friedelschoen/go-uevent/pkg/device"
)

// udevControlPath is checked by groupForUdev to decide whether a udev
// daemon is plausibly running.
const udevControlPath = "/run/udev/control"

// groupForUdev probes whether a udev-style device daemon is reachable, used
// to resolve the "udev" group name. It is a package variable, not a plain
// function, so tests can substitute a fake without touching the filesystem.
var groupForUdev = func() Group {
	if _, err := os.Stat(udevControlPath); err == nil {
		return GroupUserland
	}
	if devtmpfsPresent() {
		return GroupUserland
	}
	return GroupNone
}

func devtmpfsPresent() bool {
	var st unix.Statfs_t
	if err := unix.Statfs("/dev", &st); err != nil {
		return false
	}
	return int64(st.Type) == unix.TMPFS_MAGIC
}

// groupForName resolves spec.md §4.6's group-name rule: "" means unicast
// only, "kernel" is raw kernel uevents, "udev" is the device daemon's
// post-processed events — downgraded to GroupNone only when groupForUdev
// reports the daemon is unreachable by both of its probes.
func groupForName(name string) (Group, error) {
	switch name {
	case "":
		return GroupNone, nil
	case "kernel":
		return GroupKernel, nil
	case "udev":
		return groupForUdev(), nil
	default:
		return GroupNone, newErr("groupForName", KindInvalidArgument, nil)
	}
}

// Monitor is a client-side handle on a kernel uevent netlink socket: it
// sends and receives device messages and owns the compiled kernel filter
// currently attached to its socket (spec.md §3).
type Monitor struct {
	fd            int
	localGroup    Group
	localPID      uint32
	destGroups    Group
	trustedSender uint32
	filter        *FilterSpec
	bound         bool
}

// NewFromNetlink creates a Monitor for name's multicast group ("kernel",
// "udev", or "" for unicast-only) over a fresh non-blocking, close-on-exec
// netlink socket (spec.md §4.6, "create from group name"). The socket is
// not bound yet; EnableReceiving binds it to the group.
func NewFromNetlink(name string) (*Monitor, error) {
	const op = "NewFromNetlink"
	group, err := groupForName(name)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, osError(op, err)
	}

	return &Monitor{
		fd:         fd,
		localGroup: group,
		destGroups: GroupUserland,
		filter:     NewFilterSpec(),
	}, nil
}

// NewFromFd adopts an already-open netlink socket descriptor, querying its
// bound local address from the kernel (spec.md §4.6, "create from external
// socket"). The caller retains ownership of fd's lifetime semantics beyond
// Monitor.Close.
func NewFromFd(fd int) (*Monitor, error) {
	m := &Monitor{fd: fd, bound: true, destGroups: GroupUserland, filter: NewFilterSpec()}
	if err := m.refreshLocalAddress(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Monitor) refreshLocalAddress() error {
	const op = "refreshLocalAddress"
	sa, err := unix.Getsockname(m.fd)
	if err != nil {
		return osError(op, err)
	}
	nl, ok := sa.(*unix.SockaddrNetlink)
	if !ok {
		return newErr(op, KindOsError, nil)
	}
	m.localPID = nl.Pid
	return nil
}

// PeerID returns the monitor's local netlink port id, usable as the trusted
// sender id another monitor passes to AllowUnicastSender.
func (m *Monitor) PeerID() uint32 { return m.localPID }

// EnableReceiving compiles and attaches the current filter, binds the
// socket to its configured multicast group if not already bound, and
// enables SO_PASSCRED so senders' credentials arrive with each datagram
// (spec.md §4.6).
func (m *Monitor) EnableReceiving() error {
	const op = "EnableReceiving"
	if err := m.filterUpdate(); err != nil {
		return err
	}
	if !m.bound {
		sa := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: uint32(m.localGroup)}
		if err := unix.Bind(m.fd, sa); err != nil {
			return osError(op, err)
		}
		m.bound = true
	}
	if err := m.refreshLocalAddress(); err != nil {
		return err
	}
	if err := unix.SetsockoptInt(m.fd, unix.SOL_SOCKET, unix.SO_PASSCRED, 1); err != nil {
		return osError(op, err)
	}
	return nil
}

// SetReceiveBufferSize forces the kernel socket receive buffer to size,
// bypassing the usual rmem_max cap (requires CAP_NET_ADMIN).
func (m *Monitor) SetReceiveBufferSize(size int) error {
	if err := unix.SetsockoptInt(m.fd, unix.SOL_SOCKET, unix.SO_RCVBUFFORCE, size); err != nil {
		return osError("SetReceiveBufferSize", err)
	}
	return nil
}

// AllowUnicastSender records sender's local peer id as the only unicast
// sender this monitor admits (spec.md §4.7).
func (m *Monitor) AllowUnicastSender(sender *Monitor) {
	m.trustedSender = sender.localPID
}

// RevokeUnicastSender clears the trusted unicast sender, after which no
// unicast datagram will be admitted.
func (m *Monitor) RevokeUnicastSender() {
	m.trustedSender = 0
}

// FilterAddMatchSubsystem adds a subsystem-only match.
func (m *Monitor) FilterAddMatchSubsystem(subsystem string) error {
	return m.filter.AddMatchSubsystemDevtype(subsystem, "", false)
}

// FilterAddMatchSubsystemDevtype adds a subsystem+devtype match.
func (m *Monitor) FilterAddMatchSubsystemDevtype(subsystem, devtype string) error {
	return m.filter.AddMatchSubsystemDevtype(subsystem, devtype, true)
}

// FilterAddMatchTag adds a tag match.
func (m *Monitor) FilterAddMatchTag(tag string) error {
	return m.filter.AddMatchTag(tag)
}

// FilterUpdate recompiles the current FilterSpec and attaches it to the
// socket, replacing whatever program was attached before.
func (m *Monitor) FilterUpdate() error { return m.filterUpdate() }

// FilterRemove clears the FilterSpec and detaches the kernel filter with
// SO_DETACH_FILTER.
func (m *Monitor) FilterRemove() error {
	m.filter.RemoveAll()
	if err := unix.SetsockoptInt(m.fd, unix.SOL_SOCKET, unix.SO_DETACH_FILTER, 0); err != nil {
		return osError("FilterRemove", err)
	}
	return nil
}

func (m *Monitor) filterUpdate() error {
	const op = "filterUpdate"
	prog, err := compileFilter(m.filter)
	if err != nil {
		return err
	}
	if prog == nil {
		return nil
	}
	fprog := unix.SockFprog{Len: uint16(len(prog)), Filter: &prog[0]}
	if err := unix.SetsockoptSockFprog(m.fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &fprog); err != nil {
		return osError(op, err)
	}
	return nil
}

// FD implements PollDriver: the monitor's socket descriptor.
func (m *Monitor) FD() int { return m.fd }

// Poll implements PollDriver. It performs exactly one receive attempt and
// reports whether another datagram is immediately ready, so Poller's Stream
// and Wait can drain a burst without re-entering the OS poll wait.
func (m *Monitor) Poll() (*device.Device, bool, error) {
	dev, err := m.receiveOnce()
	if err != nil {
		return nil, false, err
	}
	return dev, m.dataReady(), nil
}

func (m *Monitor) dataReady() bool {
	fds := []unix.PollFd{{Fd: int32(m.fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, 0)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return false
		}
		return n > 0 && fds[0].Revents&unix.POLLIN != 0
	}
}

// Receive drains the socket per spec.md §4.6: it keeps attempting
// receiveOnce while data remains immediately available, returning the first
// accepted device or an ErrAgain-wrapped *Error once nothing more is ready.
func (m *Monitor) Receive() (*device.Device, error) {
	for {
		dev, err := m.receiveOnce()
		if err == nil {
			return dev, nil
		}
		if !IsAgain(err) {
			return nil, err
		}
		if !m.dataReady() {
			return nil, err
		}
	}
}

// receiveOnce reads exactly one datagram, applies admission, decodes it,
// and re-filters it. It never blocks beyond the underlying recvmsg call.
func (m *Monitor) receiveOnce() (*device.Device, error) {
	const op = "receiveOnce"
	buf := make([]byte, 8192)
	oob := make([]byte, unix.CmsgSpace(unix.SizeofUcred))
	n, oobn, flags, from, err := unix.Recvmsg(m.fd, buf, oob, 0)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, again(op)
		}
		return nil, osError(op, err)
	}
	if n < minDatagramLen || flags&unix.MSG_TRUNC != 0 {
		return nil, again(op)
	}

	var senderGroup Group
	var senderPID uint32
	if nl, ok := from.(*unix.SockaddrNetlink); ok {
		senderGroup = Group(nl.Groups)
		senderPID = nl.Pid
	}

	cred, _ := parseCredentials(oob[:oobn])
	if err := m.admit(senderGroup, senderPID, cred); err != nil {
		return nil, err
	}

	dev, err := DecodeDevice(buf[:n])
	if err != nil {
		return nil, err
	}
	if !passesFilter(m.filter, dev) {
		return nil, again(op)
	}
	return dev, nil
}

// Send serializes d and writes it to destination's local peer address, or
// to the monitor's default multicast destination if destination is nil
// (spec.md §4.6). ECONNREFUSED on the default destination means no
// subscribers were listening and is reported as a successful zero-byte
// send; an explicit unicast destination's ECONNREFUSED is returned as-is.
func (m *Monitor) Send(destination *Monitor, d *device.Device) (int, error) {
	const op = "Send"
	buf := EncodeDevice(d)

	var to unix.Sockaddr
	usingDefault := destination == nil
	if destination != nil {
		to = &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Pid: destination.localPID}
	} else {
		to = &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: uint32(m.destGroups)}
	}

	if err := unix.Sendto(m.fd, buf, 0, to); err != nil {
		if usingDefault && err == unix.ECONNREFUSED {
			return 0, nil
		}
		return 0, osError(op, err)
	}
	return len(buf), nil
}

// Close releases the monitor's socket descriptor. Close is idempotent.
func (m *Monitor) Close() error {
	if m.fd < 0 {
		return nil
	}
	err := unix.Close(m.fd)
	m.fd = -1
	if err != nil {
		return osError("Close", err)
	}
	return nil
}

// Destroy closes the monitor and drops its FilterSpec.
func (m *Monitor) Destroy() error {
	err := m.Close()
	m.filter = NewFilterSpec()
	return err
}
