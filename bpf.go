//go:build linux

package uevent

import "golang.org/x/sys/unix"

// Classic BPF opcode fragments needed to build a socket filter program,
// mirroring the layout of Linux's <linux/filter.h>. Adapted from the
// instruction-builder style of a standalone eBPF assembler consulted for
// this package (opcode-fragment constants, append-and-bound pattern); the
// actual program shape below follows libudev-monitor.c's filter_update.
const (
	bpfLd  = 0x00 // BPF_LD
	bpfJmp = 0x05 // BPF_JMP
	bpfRet = 0x06 // BPF_RET
	bpfAlu = 0x04 // BPF_ALU

	bpfW   = 0x00 // BPF_W, word-sized load
	bpfAbs = 0x20 // BPF_ABS

	bpfK   = 0x00 // BPF_K, immediate operand
	bpfJeq = 0x10 // BPF_JEQ
	bpfAnd = 0x50 // BPF_AND

	maxInstructions = 512
)

// program is a bounded builder for a classic BPF socket-filter program. It
// tracks size as instructions are appended so the compiler fails before
// emitting a partial program past the instruction cap.
type program struct {
	ins []unix.SockFilter
}

func (p *program) append(ins unix.SockFilter) error {
	if len(p.ins) >= maxInstructions {
		return newErr("compileFilter", KindTooBig, nil)
	}
	p.ins = append(p.ins, ins)
	return nil
}

func (p *program) stmt(code uint16, k uint32) error {
	return p.append(unix.SockFilter{Code: code, K: k})
}

func (p *program) jump(code uint16, k uint32, jt, jf uint8) error {
	return p.append(unix.SockFilter{Code: code, Jt: jt, Jf: jf, K: k})
}

// compileFilter translates spec into a bounded classic BPF program (spec.md
// §4.4). A nil, nil return means spec is empty and no filter should be
// installed. Tag and subsystem blocks follow the forward-jump layout of
// libudev-monitor.c's udev_monitor_filter_update exactly, including its
// "remaining tags after this one" distance formula.
func compileFilter(spec *FilterSpec) ([]unix.SockFilter, error) {
	if spec.empty() {
		return nil, nil
	}

	p := &program{}

	// Magic gate: anything not carrying our frame magic always passes
	// through to user space unfiltered.
	if err := p.stmt(bpfLd|bpfW|bpfAbs, offMagic); err != nil {
		return nil, err
	}
	if err := p.jump(bpfJmp|bpfJeq|bpfK, frameMagic, 1, 0); err != nil {
		return nil, err
	}
	if err := p.stmt(bpfRet|bpfK, 0xffffffff); err != nil {
		return nil, err
	}

	if len(spec.tagOrder) > 0 {
		remaining := len(spec.tagOrder)
		for _, tag := range spec.tagOrder {
			bits := B64(tag)
			hi := uint32(bits >> 32)
			lo := uint32(bits & 0xffffffff)
			remaining--

			if err := p.stmt(bpfLd|bpfW|bpfAbs, offBloomHi); err != nil {
				return nil, err
			}
			if err := p.stmt(bpfAlu|bpfAnd|bpfK, hi); err != nil {
				return nil, err
			}
			if err := p.jump(bpfJmp|bpfJeq|bpfK, hi, 0, 3); err != nil {
				return nil, err
			}

			if err := p.stmt(bpfLd|bpfW|bpfAbs, offBloomLo); err != nil {
				return nil, err
			}
			if err := p.stmt(bpfAlu|bpfAnd|bpfK, lo); err != nil {
				return nil, err
			}
			if err := p.jump(bpfJmp|bpfJeq|bpfK, lo, uint8(1+remaining*6), 0); err != nil {
				return nil, err
			}
		}
		if err := p.stmt(bpfRet|bpfK, 0); err != nil {
			return nil, err
		}
	}

	if len(spec.subsystems) > 0 {
		for _, m := range spec.subsystems {
			if err := p.stmt(bpfLd|bpfW|bpfAbs, offSubsysHash); err != nil {
				return nil, err
			}
			if !m.hasDevtype {
				if err := p.jump(bpfJmp|bpfJeq|bpfK, H32(m.subsystem), 0, 1); err != nil {
					return nil, err
				}
			} else {
				if err := p.jump(bpfJmp|bpfJeq|bpfK, H32(m.subsystem), 0, 3); err != nil {
					return nil, err
				}
				if err := p.stmt(bpfLd|bpfW|bpfAbs, offDevtypeHash); err != nil {
					return nil, err
				}
				if err := p.jump(bpfJmp|bpfJeq|bpfK, H32(m.devtype), 0, 1); err != nil {
					return nil, err
				}
			}
			if err := p.stmt(bpfRet|bpfK, 0xffffffff); err != nil {
				return nil, err
			}
		}
		if err := p.stmt(bpfRet|bpfK, 0); err != nil {
			return nil, err
		}
	}

	if err := p.stmt(bpfRet|bpfK, 0xffffffff); err != nil {
		return nil, err
	}

	return p.ins, nil
}
