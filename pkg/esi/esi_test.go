package esi

import (
	"testing"

	ecat "github.com/fieldworks/goecat"
	"github.com/stretchr/testify/assert"
)

const el2004 = `
[Slave]
Name        = EL2004
VendorId    = 0x00000002
ProductCode = 0x07D43052

[SyncManager1]
Direction = input
Watchdog  = disable
Pdos      = 1A00

[SyncManager0]
Direction = output
Pdos      = 1600,1601

[Pdo1600]
Entries = 7000:01:1,7000:02:1

[Pdo1601]
Entries = 7010:01:1

[Pdo1A00]
Entries = 6000:01:1,6000:02:15
`

func TestLoadDescription(t *testing.T) {
	desc, err := LoadBytes([]byte(el2004))
	assert.Nil(t, err)
	assert.Equal(t, "EL2004", desc.Name)
	assert.Equal(t, ecat.SlaveId{VendorId: 0x2, ProductCode: 0x07D43052}, desc.Id)
	assert.Len(t, desc.Syncs, 2)

	// Sync managers come out sorted by index regardless of file order
	sm0 := desc.Syncs[0]
	assert.EqualValues(t, 0, sm0.Index)
	assert.Equal(t, ecat.DirectionOutput, sm0.Direction)
	assert.Equal(t, ecat.WatchdogDefault, sm0.Watchdog)
	assert.Len(t, sm0.Pdos, 2)
	assert.EqualValues(t, 0x1600, sm0.Pdos[0].Index)
	assert.Equal(t, []ecat.PdoEntryInfo{
		{Index: 0x7000, Subindex: 1, BitLength: 1},
		{Index: 0x7000, Subindex: 2, BitLength: 1},
	}, sm0.Pdos[0].Entries)
	assert.EqualValues(t, 0x1601, sm0.Pdos[1].Index)

	sm1 := desc.Syncs[1]
	assert.EqualValues(t, 1, sm1.Index)
	assert.Equal(t, ecat.DirectionInput, sm1.Direction)
	assert.Equal(t, ecat.WatchdogDisable, sm1.Watchdog)
	assert.Equal(t, []ecat.PdoEntryInfo{
		{Index: 0x6000, Subindex: 1, BitLength: 1},
		{Index: 0x6000, Subindex: 2, BitLength: 15},
	}, sm1.Pdos[0].Entries)
}

func TestLoadMissingSlaveSection(t *testing.T) {
	_, err := LoadBytes([]byte("[SyncManager0]\nDirection = output\n"))
	assert.NotNil(t, err)
}

func TestLoadBadEntry(t *testing.T) {
	source := `
[Slave]
Name        = X
VendorId    = 0x2
ProductCode = 0x3

[SyncManager0]
Direction = output
Pdos      = 1600

[Pdo1600]
Entries = 7000:01
`
	_, err := LoadBytes([]byte(source))
	assert.NotNil(t, err)
}

func TestLoadUnknownPdoReference(t *testing.T) {
	source := `
[Slave]
Name        = X
VendorId    = 0x2
ProductCode = 0x3

[SyncManager0]
Direction = output
Pdos      = 1700
`
	_, err := LoadBytes([]byte(source))
	assert.NotNil(t, err)
}

func TestLoadBadDirection(t *testing.T) {
	source := `
[Slave]
Name        = X
VendorId    = 0x2
ProductCode = 0x3

[SyncManager0]
Direction = sideways
`
	_, err := LoadBytes([]byte(source))
	assert.NotNil(t, err)
}
