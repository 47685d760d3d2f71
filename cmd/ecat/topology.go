package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	ecat "github.com/fieldworks/goecat"
	"github.com/fieldworks/goecat/pkg/esi"
	"github.com/fieldworks/goecat/pkg/master"
	"github.com/fieldworks/goecat/pkg/sim"
	"gopkg.in/yaml.v3"
)

// topology is the YAML description of a simulated bus :
//
//	slaves:
//	  - name: EL2004
//	    position: 0
//	    vendor_id: 0x2
//	    product_code: 0x07D43052
//	    description: el2004.ini
//	    objects:
//	      - index: 0x1018
//	        subindex: 1
//	        value: "02000000"
//
// Object values are hex encoded bytes. The optional description key names
// a slave description ini file, resolved relative to the topology file,
// used by the cycle command to configure PDO assignments.
type topology struct {
	dir    string
	Slaves []slaveSpec `yaml:"slaves"`
}

type slaveSpec struct {
	Name        string            `yaml:"name"`
	Alias       uint16            `yaml:"alias,omitempty"`
	Position    uint16            `yaml:"position"`
	VendorId    uint32            `yaml:"vendor_id"`
	ProductCode uint32            `yaml:"product_code"`
	Description string            `yaml:"description,omitempty"`
	Objects     []objectSpec      `yaml:"objects,omitempty"`
	Files       map[string]string `yaml:"files,omitempty"`
}

type objectSpec struct {
	Index    uint16 `yaml:"index"`
	Subindex uint8  `yaml:"subindex"`
	Value    string `yaml:"value"`
}

func (s *slaveSpec) addr() ecat.SlaveAddr {
	if s.Alias != 0 {
		return ecat.ByAlias(s.Alias, s.Position)
	}
	return ecat.ByPosition(s.Position)
}

func (s *slaveSpec) id() ecat.SlaveId {
	return ecat.SlaveId{VendorId: s.VendorId, ProductCode: s.ProductCode}
}

func loadTopology(path string) (*topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	topo := &topology{dir: filepath.Dir(path)}
	if err := yaml.Unmarshal(data, topo); err != nil {
		return nil, fmt.Errorf("invalid topology %v : %v", path, err)
	}
	if len(topo.Slaves) == 0 {
		return nil, fmt.Errorf("topology %v declares no slaves", path)
	}
	return topo, nil
}

// description loads the slave description file referenced by a slave spec
func (t *topology) description(spec *slaveSpec) (*esi.SlaveDescription, error) {
	if spec.Description == "" {
		return nil, fmt.Errorf("slave %v has no description file", spec.Name)
	}
	return esi.Load(filepath.Join(t.dir, spec.Description))
}

// channel builds the simulated bus described by the topology
func (t *topology) channel() (*sim.Channel, error) {
	channel := sim.NewChannel()
	for i := range t.Slaves {
		spec := &t.Slaves[i]
		objects := map[sim.ObjectKey][]byte{}
		for _, obj := range spec.Objects {
			value, err := hex.DecodeString(obj.Value)
			if err != nil {
				return nil, fmt.Errorf("slave %v object %04x:%02x : %v", spec.Name, obj.Index, obj.Subindex, err)
			}
			objects[sim.ObjectKey{Index: obj.Index, Subindex: obj.Subindex}] = value
		}
		files := map[string][]byte{}
		for name, content := range spec.Files {
			files[name] = []byte(content)
		}
		channel.AddSlave(sim.SlaveOptions{
			Name:     spec.Name,
			Alias:    spec.Alias,
			Position: spec.Position,
			Id:       spec.id(),
			Objects:  objects,
			Files:    files,
		})
	}
	return channel, nil
}

// openBus loads the topology given on the command line and opens a master
// on the simulated bus it describes
func openBus() (*master.Master, *sim.Channel, *topology, error) {
	topo, err := loadTopology(topologyPath)
	if err != nil {
		return nil, nil, nil, err
	}
	channel, err := topo.channel()
	if err != nil {
		return nil, nil, nil, err
	}
	m, err := master.Open(channel, 0)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := m.Reserve(); err != nil {
		return nil, nil, nil, err
	}
	// Simulated bring-up needs one poll per state transition, no reason
	// to wait the hardware scale default between polls
	m.SetPollInterval(time.Millisecond)
	return m, channel, topo, nil
}
