// Package device implements the narrow device representation the uevent
// monitor core sends and receives: a NUL-separated property blob plus the
// subsystem/devtype/tag fields the filter machinery hashes, and the
// initialized flag library-framed receives carry. It intentionally does not
// reproduce a full device database, sysfs walking, or rule-engine
// integration — that is out of scope.
package device

import (
	"bytes"
	"fmt"
	"iter"
	"strings"

	"github.com/friedelschoen/go-uevent/pkg/seq"
)

// property is one KEY=VALUE pair, kept in insertion order so PropertiesBlob
// round-trips byte-for-byte for devices built by NewFromBlob.
type property struct {
	key   string
	value string
}

// Device is the minimal property bag the uevent monitor core needs: enough
// to compute filter hashes on send, and enough to hold what was received on
// the way back out to the caller.
type Device struct {
	properties  []property
	index       map[string]int
	tags        map[string]struct{}
	tagOrder    []string
	initialized bool
}

// New returns an empty Device, ready for SetProperty/AddTag calls before
// being handed to a Monitor's Send.
func New() *Device {
	return &Device{index: make(map[string]int), tags: make(map[string]struct{})}
}

// NewFromBlob parses a NUL-separated KEY=VALUE property blob — the format
// PropertiesBlob produces, and the format carried in both library- and
// kernel-framed datagrams — into a Device. A TAGS property, if present, also
// populates the tag set from its colon-separated value.
func NewFromBlob(blob []byte) (*Device, error) {
	d := New()
	for _, rec := range bytes.Split(blob, []byte{0}) {
		if len(rec) == 0 {
			continue
		}
		key, value, ok := strings.Cut(string(rec), "=")
		if !ok {
			return nil, fmt.Errorf("device: malformed property record %q", rec)
		}
		if key == "TAGS" {
			for _, tag := range strings.Split(strings.Trim(value, ":"), ":") {
				if tag != "" {
					d.AddTag(tag)
				}
			}
		}
		d.SetProperty(key, value)
	}
	return d, nil
}

// SetProperty sets key to value, overwriting any previous value for key
// while preserving the position of its first occurrence.
func (d *Device) SetProperty(key, value string) {
	if i, ok := d.index[key]; ok {
		d.properties[i].value = value
		return
	}
	d.index[key] = len(d.properties)
	d.properties = append(d.properties, property{key: key, value: value})
}

// PropertyValue returns key's value and whether it was present.
func (d *Device) PropertyValue(key string) (string, bool) {
	i, ok := d.index[key]
	if !ok {
		return "", false
	}
	return d.properties[i].value, true
}

// Properties iterates key/value pairs in insertion order.
func (d *Device) Properties() iter.Seq2[string, string] {
	return seq.Map12(seq.SliceSeq(d.properties), func(p property) (string, string) {
		return p.key, p.value
	})
}

// AddTag adds tag to the device's tag set and rewrites the TAGS property
// (":tag1:tag2:") so the tags travel in PropertiesBlob. Duplicates are
// idempotent.
func (d *Device) AddTag(tag string) {
	if _, ok := d.tags[tag]; !ok {
		d.tags[tag] = struct{}{}
		d.tagOrder = append(d.tagOrder, tag)
		d.SetProperty("TAGS", ":"+strings.Join(d.tagOrder, ":")+":")
	}
}

// HasTag reports whether tag was attached to the device.
func (d *Device) HasTag(tag string) bool {
	_, ok := d.tags[tag]
	return ok
}

// Tags iterates the device's tags in insertion order.
func (d *Device) Tags() iter.Seq[string] {
	return seq.SliceSeq(d.tagOrder)
}

// Subsystem returns the SUBSYSTEM property, or "" if unset.
func (d *Device) Subsystem() string {
	v, _ := d.PropertyValue("SUBSYSTEM")
	return v
}

// Devtype returns the DEVTYPE property and whether it was present.
func (d *Device) Devtype() (string, bool) {
	return d.PropertyValue("DEVTYPE")
}

// Action returns the ACTION property, or "" if unset. Only meaningful for
// devices received through a monitor.
func (d *Device) Action() string {
	v, _ := d.PropertyValue("ACTION")
	return v
}

// Devpath returns the DEVPATH property, or "" if unset.
func (d *Device) Devpath() string {
	v, _ := d.PropertyValue("DEVPATH")
	return v
}

// MarkInitialized records that this device was produced by a library-framed
// receive.
func (d *Device) MarkInitialized() { d.initialized = true }

// Initialized reports whether MarkInitialized was called.
func (d *Device) Initialized() bool { return d.initialized }

// PropertiesBlob serializes the device's properties back into the
// NUL-separated KEY=VALUE format, terminated by an empty record, that
// FrameHeader's encoder places after its 40-byte header.
func (d *Device) PropertiesBlob() []byte {
	var buf bytes.Buffer
	for _, p := range d.properties {
		buf.WriteString(p.key)
		buf.WriteByte('=')
		buf.WriteString(p.value)
		buf.WriteByte(0)
	}
	buf.WriteByte(0)
	return buf.Bytes()
}
