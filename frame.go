package uevent

import (
	"bytes"
	"encoding/binary"

	"github.com/friedelschoen/go-uevent/pkg/device"
)

const (
	libudevPrefix   = "libudev"
	frameMagic      = 0xFEEDCAFE
	frameHeaderSize = 40
	minDatagramLen  = 32
	minKernelHeader = len("a@/d")
)

// wire offsets of FrameHeader's NET-ORDER fields, used both by encode/decode
// here and by the BPF compiler's BPF_LD|BPF_ABS loads in bpf.go.
const (
	offMagic       = 8
	offSubsysHash  = 24
	offDevtypeHash = 28
	offBloomHi     = 32
	offBloomLo     = 36
)

// FrameHeader is the fixed 40-byte header placed before the property blob of
// every library-framed datagram (spec.md §3). Every field except
// HeaderSize/PropertiesOff/PropertiesLen travels in network byte order.
type FrameHeader struct {
	Prefix              [8]byte
	Magic               uint32
	HeaderSize          uint32
	PropertiesOff       uint32
	PropertiesLen       uint32
	FilterSubsystemHash uint32
	FilterDevtypeHash   uint32
	FilterTagBloomHi    uint32
	FilterTagBloomLo    uint32
}

func (h *FrameHeader) encode() []byte {
	buf := make([]byte, frameHeaderSize)
	copy(buf[0:8], h.Prefix[:])
	binary.BigEndian.PutUint32(buf[8:12], h.Magic)
	binary.LittleEndian.PutUint32(buf[12:16], h.HeaderSize)
	binary.LittleEndian.PutUint32(buf[16:20], h.PropertiesOff)
	binary.LittleEndian.PutUint32(buf[20:24], h.PropertiesLen)
	binary.BigEndian.PutUint32(buf[24:28], h.FilterSubsystemHash)
	binary.BigEndian.PutUint32(buf[28:32], h.FilterDevtypeHash)
	binary.BigEndian.PutUint32(buf[32:36], h.FilterTagBloomHi)
	binary.BigEndian.PutUint32(buf[36:40], h.FilterTagBloomLo)
	return buf
}

// EncodeDevice builds the wire-ready datagram for d: the 40-byte header
// followed by d's property blob. Encoding the same device twice produces
// byte-identical output (spec.md §8, encoder determinism).
func EncodeDevice(d *device.Device) []byte {
	blob := d.PropertiesBlob()

	var h FrameHeader
	copy(h.Prefix[:], libudevPrefix)
	h.Magic = frameMagic
	h.HeaderSize = frameHeaderSize
	h.PropertiesOff = frameHeaderSize
	h.PropertiesLen = uint32(len(blob))
	h.FilterSubsystemHash = H32(d.Subsystem())
	if devtype, ok := d.Devtype(); ok {
		h.FilterDevtypeHash = H32(devtype)
	}

	var bloom uint64
	for tag := range d.Tags() {
		bloom |= B64(tag)
	}
	h.FilterTagBloomHi = uint32(bloom >> 32)
	h.FilterTagBloomLo = uint32(bloom & 0xffffffff)

	out := make([]byte, 0, frameHeaderSize+len(blob))
	out = append(out, h.encode()...)
	out = append(out, blob...)
	return out
}

// DecodeDevice parses one received datagram into a Device, accepting both
// library-framed and kernel-framed forms (spec.md §4.2). Any structural
// failure is reported as a dropped message (KindAgain), never as a hard
// error: a malformed datagram must not abort a drain loop.
func DecodeDevice(buf []byte) (*device.Device, error) {
	const op = "DecodeDevice"
	if len(buf) < minDatagramLen {
		return nil, again(op)
	}

	if bytes.HasPrefix(buf, []byte(libudevPrefix)) {
		if len(buf) < frameHeaderSize {
			return nil, again(op)
		}
		magic := binary.BigEndian.Uint32(buf[offMagic : offMagic+4])
		if magic != frameMagic {
			return nil, again(op)
		}
		propsOff := binary.LittleEndian.Uint32(buf[16:20])
		if uint64(propsOff)+32 > uint64(len(buf)) {
			return nil, again(op)
		}
		d, err := device.NewFromBlob(buf[propsOff:])
		if err != nil {
			return nil, again(op)
		}
		d.MarkInitialized()
		return d, nil
	}

	idx := bytes.IndexByte(buf, 0)
	if idx < 0 {
		return nil, again(op)
	}
	bufpos := idx + 1
	if idx < minKernelHeader || bufpos >= len(buf) {
		return nil, again(op)
	}
	if !bytes.Contains(buf[:idx], []byte("@/")) {
		return nil, again(op)
	}
	d, err := device.NewFromBlob(buf[bufpos:])
	if err != nil {
		return nil, again(op)
	}
	return d, nil
}
