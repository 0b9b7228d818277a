package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetProperty_OverwritesAndPreservesOrder(t *testing.T) {
	d := New()
	d.SetProperty("A", "1")
	d.SetProperty("B", "2")
	d.SetProperty("A", "3")

	var keys []string
	for k := range d.Properties() {
		keys = append(keys, k)
	}
	assert.Equal(t, []string{"A", "B"}, keys)

	v, ok := d.PropertyValue("A")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
}

func TestAddTag_Idempotent(t *testing.T) {
	d := New()
	d.AddTag("seat")
	d.AddTag("seat")
	d.AddTag("systemd")

	var tags []string
	for tag := range d.Tags() {
		tags = append(tags, tag)
	}
	assert.Equal(t, []string{"seat", "systemd"}, tags)
	assert.True(t, d.HasTag("seat"))
	assert.False(t, d.HasTag("other"))
}

func TestNewFromBlob_ParsesPropertiesAndTags(t *testing.T) {
	blob := []byte("ACTION=add\x00SUBSYSTEM=block\x00TAGS=:seat:systemd:\x00")
	d, err := NewFromBlob(blob)
	assert.NoError(t, err)
	assert.Equal(t, "block", d.Subsystem())
	assert.Equal(t, "add", d.Action())
	assert.True(t, d.HasTag("seat"))
	assert.True(t, d.HasTag("systemd"))
}

func TestNewFromBlob_RejectsMalformedRecord(t *testing.T) {
	_, err := NewFromBlob([]byte("NOTANASSIGNMENT\x00"))
	assert.Error(t, err)
}

func TestPropertiesBlob_RoundTrip(t *testing.T) {
	d := New()
	d.SetProperty("ACTION", "add")
	d.SetProperty("SUBSYSTEM", "block")
	d.SetProperty("DEVPATH", "/devices/virtual/block/loop0")

	blob := d.PropertiesBlob()
	decoded, err := NewFromBlob(blob)
	assert.NoError(t, err)
	assert.Equal(t, blob, decoded.PropertiesBlob())
}

func TestMarkInitialized(t *testing.T) {
	d := New()
	assert.False(t, d.Initialized())
	d.MarkInitialized()
	assert.True(t, d.Initialized())
}
