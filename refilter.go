package uevent

import (
	"github.com/friedelschoen/go-uevent/pkg/device"
	"github.com/friedelschoen/go-uevent/pkg/seq"
)

// passesFilter re-applies spec.md §4.5's semantics to a decoded device,
// compensating for BPF bloom false positives and for datagrams received
// before the kernel filter caught up with the current FilterSpec. An empty
// spec passes everything.
func passesFilter(spec *FilterSpec, d *device.Device) bool {
	if len(spec.subsystems) > 0 && !matchesSubsystem(spec, d) {
		return false
	}
	if len(spec.tagOrder) > 0 && !matchesTag(spec, d) {
		return false
	}
	return true
}

func matchesSubsystem(spec *FilterSpec, d *device.Device) bool {
	subsystem := d.Subsystem()
	devtype, hasDevtype := d.Devtype()
	for _, m := range spec.subsystems {
		if m.subsystem != subsystem {
			continue
		}
		if !m.hasDevtype {
			return true
		}
		if hasDevtype && devtype == m.devtype {
			return true
		}
	}
	return false
}

func matchesTag(spec *FilterSpec, d *device.Device) bool {
	matching := seq.Filter(d.Tags(), func(tag string) bool {
		_, ok := spec.tags[tag]
		return ok
	})
	for range matching {
		return true
	}
	return false
}
