//go:build linux

package uevent

import "golang.org/x/sys/unix"

// Group identifies which netlink multicast group, if any, a datagram
// traveled on (spec.md §3). The numeric values double as the bit in the
// socket's group-subscription mask, matching the convention the original
// libudev-monitor.c uses for nl_groups.
type Group uint32

const (
	GroupNone     Group = 0
	GroupKernel   Group = 1
	GroupUserland Group = 2
)

// admit applies spec.md §4.7's sender-identity rules to one received
// datagram. senderGroup/senderPID describe the sender's sockaddr_nl; cred is
// the SCM_CREDENTIALS ancillary payload, or nil if none arrived.
func (m *Monitor) admit(senderGroup Group, senderPID uint32, cred *unix.Ucred) error {
	const op = "admit"
	if cred == nil || cred.Uid != 0 {
		return again(op)
	}
	switch senderGroup {
	case GroupNone:
		if m.trustedSender == 0 || senderPID != m.trustedSender {
			return again(op)
		}
	case GroupKernel:
		if senderPID != 0 {
			return again(op)
		}
	}
	return nil
}

// parseCredentials extracts the SCM_CREDENTIALS ancillary message from a
// recvmsg oob buffer, or returns (nil, nil) if none is present.
func parseCredentials(oob []byte) (*unix.Ucred, error) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		if msgs[i].Header.Level == unix.SOL_SOCKET && msgs[i].Header.Type == unix.SCM_CREDENTIALS {
			return unix.ParseUnixCredentials(&msgs[i])
		}
	}
	return nil, nil
}
