// Package esi loads slave description files. A description is an ini file
// naming the expected identity of a slave and its sync manager PDO
// assignments, a convenience wrapper around building the configuration
// programmatically :
//
//	[Slave]
//	Name        = EL2004
//	VendorId    = 0x00000002
//	ProductCode = 0x07D43052
//
//	[SyncManager0]
//	Direction = output
//	Watchdog  = default
//	Pdos      = 1600,1601
//
//	[Pdo1600]
//	Entries = 7000:01:1,7000:02:1
//
// Pdo sections are keyed by hex index, entries are index:subindex:bits
// with hex index and subindex and a decimal bit width.
package esi

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	ecat "github.com/fieldworks/goecat"
	"gopkg.in/ini.v1"
)

// SlaveDescription is the parsed content of a description file
type SlaveDescription struct {
	Name  string
	Id    ecat.SlaveId
	Syncs []ecat.SyncCfg
}

var (
	matchSyncSection = regexp.MustCompile(`^SyncManager([0-9]+)$`)
	matchPdoSection  = regexp.MustCompile(`^Pdo([0-9A-Fa-f]{4})$`)
)

// Load parses a slave description file from a path
func Load(path string) (*SlaveDescription, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	return parse(file)
}

// LoadBytes parses a slave description from memory
func LoadBytes(source []byte) (*SlaveDescription, error) {
	file, err := ini.Load(source)
	if err != nil {
		return nil, err
	}
	return parse(file)
}

func parse(file *ini.File) (*SlaveDescription, error) {
	desc := &SlaveDescription{}

	slave, err := file.GetSection("Slave")
	if err != nil {
		return nil, fmt.Errorf("description has no [Slave] section : %v", err)
	}
	desc.Name = slave.Key("Name").String()
	vendor, err := parseHex32(slave.Key("VendorId").String())
	if err != nil {
		return nil, fmt.Errorf("invalid VendorId : %v", err)
	}
	product, err := parseHex32(slave.Key("ProductCode").String())
	if err != nil {
		return nil, fmt.Errorf("invalid ProductCode : %v", err)
	}
	desc.Id = ecat.SlaveId{VendorId: vendor, ProductCode: product}

	// Collect the PDO mapping sections first, sync managers refer to them
	pdos := map[uint16]ecat.PdoCfg{}
	for _, section := range file.Sections() {
		match := matchPdoSection.FindStringSubmatch(section.Name())
		if match == nil {
			continue
		}
		idx, err := strconv.ParseUint(match[1], 16, 16)
		if err != nil {
			return nil, err
		}
		pdo := ecat.PdoCfg{Index: uint16(idx)}
		for _, raw := range splitList(section.Key("Entries").String()) {
			entry, err := parseEntry(raw)
			if err != nil {
				return nil, fmt.Errorf("section [%v] : %v", section.Name(), err)
			}
			pdo.Entries = append(pdo.Entries, entry)
		}
		pdos[uint16(idx)] = pdo
	}

	for _, section := range file.Sections() {
		match := matchSyncSection.FindStringSubmatch(section.Name())
		if match == nil {
			continue
		}
		idx, err := strconv.ParseUint(match[1], 10, 8)
		if err != nil {
			return nil, err
		}
		sync := ecat.SyncCfg{Index: uint8(idx)}
		sync.Direction, err = parseDirection(section.Key("Direction").String())
		if err != nil {
			return nil, fmt.Errorf("section [%v] : %v", section.Name(), err)
		}
		sync.Watchdog, err = parseWatchdog(section.Key("Watchdog").String())
		if err != nil {
			return nil, fmt.Errorf("section [%v] : %v", section.Name(), err)
		}
		for _, raw := range splitList(section.Key("Pdos").String()) {
			pdoIdx, err := strconv.ParseUint(raw, 16, 16)
			if err != nil {
				return nil, fmt.Errorf("section [%v] : invalid pdo index %v", section.Name(), raw)
			}
			pdo, ok := pdos[uint16(pdoIdx)]
			if !ok {
				return nil, fmt.Errorf("section [%v] : no [Pdo%04X] section", section.Name(), pdoIdx)
			}
			sync.Pdos = append(sync.Pdos, pdo)
		}
		desc.Syncs = append(desc.Syncs, sync)
	}
	sort.Slice(desc.Syncs, func(i, j int) bool { return desc.Syncs[i].Index < desc.Syncs[j].Index })

	return desc, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseHex32(raw string) (uint32, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	v, err := strconv.ParseUint(raw, 16, 32)
	return uint32(v), err
}

// parseEntry parses one index:subindex:bits mapping
func parseEntry(raw string) (ecat.PdoEntryInfo, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return ecat.PdoEntryInfo{}, fmt.Errorf("invalid entry %v, expecting index:subindex:bits", raw)
	}
	idx, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return ecat.PdoEntryInfo{}, err
	}
	sub, err := strconv.ParseUint(parts[1], 16, 8)
	if err != nil {
		return ecat.PdoEntryInfo{}, err
	}
	bitLen, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return ecat.PdoEntryInfo{}, err
	}
	return ecat.PdoEntryInfo{Index: uint16(idx), Subindex: uint8(sub), BitLength: uint16(bitLen)}, nil
}

func parseDirection(raw string) (ecat.SyncDirection, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "input":
		return ecat.DirectionInput, nil
	case "output":
		return ecat.DirectionOutput, nil
	default:
		return ecat.DirectionInvalid, fmt.Errorf("invalid direction %q", raw)
	}
}

func parseWatchdog(raw string) (ecat.WatchdogMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "default":
		return ecat.WatchdogDefault, nil
	case "enable":
		return ecat.WatchdogEnable, nil
	case "disable":
		return ecat.WatchdogDisable, nil
	default:
		return ecat.WatchdogDefault, fmt.Errorf("invalid watchdog mode %q", raw)
	}
}
