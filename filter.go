package uevent

// subsystemMatch pairs a subsystem name with an optional devtype filter.
type subsystemMatch struct {
	subsystem  string
	devtype    string
	hasDevtype bool
}

// FilterSpec holds the subsystem/devtype and tag matches a Monitor compiles
// into a kernel socket filter (spec.md §3, §4.3). The zero value returned by
// NewFilterSpec is an empty spec: compiling it installs no filter at all.
type FilterSpec struct {
	subsystems  []subsystemMatch
	bySubsystem map[string]int
	tags        map[string]struct{}
	tagOrder    []string
}

// NewFilterSpec returns an empty FilterSpec.
func NewFilterSpec() *FilterSpec {
	return &FilterSpec{
		bySubsystem: make(map[string]int),
		tags:        make(map[string]struct{}),
	}
}

// AddMatchSubsystemDevtype records a subsystem (and optional devtype) match.
// A repeated call for the same subsystem overwrites its devtype, matching
// the original `udev_monitor_filter_add_match_subsystem_devtype`'s
// last-write-wins behavior.
func (f *FilterSpec) AddMatchSubsystemDevtype(subsystem, devtype string, hasDevtype bool) error {
	if subsystem == "" {
		return newErr("AddMatchSubsystemDevtype", KindInvalidArgument, nil)
	}
	m := subsystemMatch{subsystem: subsystem, devtype: devtype, hasDevtype: hasDevtype}
	if i, ok := f.bySubsystem[subsystem]; ok {
		f.subsystems[i] = m
		return nil
	}
	f.bySubsystem[subsystem] = len(f.subsystems)
	f.subsystems = append(f.subsystems, m)
	return nil
}

// AddMatchTag inserts tag into the tag set. Duplicate tags are idempotent.
func (f *FilterSpec) AddMatchTag(tag string) error {
	if tag == "" {
		return newErr("AddMatchTag", KindInvalidArgument, nil)
	}
	if _, ok := f.tags[tag]; !ok {
		f.tags[tag] = struct{}{}
		f.tagOrder = append(f.tagOrder, tag)
	}
	return nil
}

// RemoveAll clears both collections. The caller is still responsible for
// detaching any installed kernel filter; Monitor.FilterRemove does both.
func (f *FilterSpec) RemoveAll() {
	f.subsystems = nil
	f.bySubsystem = make(map[string]int)
	f.tags = make(map[string]struct{})
	f.tagOrder = nil
}

func (f *FilterSpec) empty() bool {
	return len(f.subsystems) == 0 && len(f.tags) == 0
}
