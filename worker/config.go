package worker

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/pithecene-io/vpd/fault"
	"github.com/pithecene-io/vpd/types"
)

// locationInterface is the extra interface carrying a FRU's unexpanded
// location code.
const locationInterface = "com.ibm.ipzvpd.Location"

// SystemConfig is the subset of the system config JSON the manager uses.
//
//	{
//	  "frus": {
//	    "/sys/bus/i2c/drivers/at24/8-0050/eeprom": [
//	      {
//	        "inventoryPath": "/system/chassis/motherboard",
//	        "isSystemVpd": true,
//	        "redundantEeprom": "/sys/bus/i2c/drivers/at24/8-0051/eeprom",
//	        "concurrentlyMaintainable": false,
//	        "replaceableAtStandby": false,
//	        "essentialFru": true,
//	        "extraInterfaces": {
//	          "com.ibm.ipzvpd.Location": {"LocationCode": "Ufcs-P0"}
//	        }
//	      }
//	    ]
//	  }
//	}
type SystemConfig struct {
	Frus map[string][]FruConfig `json:"frus"`
}

// FruConfig is one inventory entry under an EEPROM.
type FruConfig struct {
	InventoryPath            string                    `json:"inventoryPath"`
	IsSystemVPD              bool                      `json:"isSystemVpd"`
	RedundantEeprom          string                    `json:"redundantEeprom"`
	RedundantEeproms         []string                  `json:"redundantEeproms"`
	ConcurrentlyMaintainable bool                      `json:"concurrentlyMaintainable"`
	ReplaceableAtStandby     bool                      `json:"replaceableAtStandby"`
	EssentialFru             bool                      `json:"essentialFru"`
	ExtraInterfaces          map[string]map[string]any `json:"extraInterfaces"`
}

// FruInfo is the resolved topology of one FRU.
type FruInfo struct {
	EepromPath               types.Path   `json:"eeprom_path" yaml:"eeprom_path"`
	InventoryPath            types.Path   `json:"inventory_path" yaml:"inventory_path"`
	RedundantEeproms         []types.Path `json:"redundant_eeproms,omitempty" yaml:"redundant_eeproms,omitempty"`
	ConcurrentlyMaintainable bool         `json:"concurrently_maintainable" yaml:"concurrently_maintainable"`
	ReplaceableAtStandby     bool         `json:"replaceable_at_standby" yaml:"replaceable_at_standby"`
	Essential                bool         `json:"essential" yaml:"essential"`
	SystemVPD                bool         `json:"system_vpd" yaml:"system_vpd"`
	LocationCode             string       `json:"location_code,omitempty" yaml:"location_code,omitempty"`
}

// LoadSystemConfig reads and decodes the system config at path.
func LoadSystemConfig(path string) (*SystemConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fault.JsonFailure(path, err)
	}
	defer func() { _ = f.Close() }()
	return ParseSystemConfig(f, path)
}

// ParseSystemConfig decodes a system config from r. name labels errors.
func ParseSystemConfig(r io.Reader, name string) (*SystemConfig, error) {
	var cfg SystemConfig
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fault.JsonFailure(name, err)
	}
	if len(cfg.Frus) == 0 {
		return nil, fault.JsonFailure(name, fmt.Errorf("no frus defined"))
	}
	return &cfg, nil
}

// topology indexes a SystemConfig by both path namespaces.
type topology struct {
	frus        []FruInfo
	byInventory map[types.Path]int
	byEeprom    map[types.Path]int // first entry under each EEPROM
	systemIdx   int
}

func buildTopology(cfg *SystemConfig) (*topology, error) {
	eeproms := make([]string, 0, len(cfg.Frus))
	for eeprom := range cfg.Frus {
		eeproms = append(eeproms, eeprom)
	}
	sort.Strings(eeproms)

	t := &topology{
		byInventory: make(map[types.Path]int),
		byEeprom:    make(map[types.Path]int),
		systemIdx:   -1,
	}
	for _, eeprom := range eeproms {
		for _, fc := range cfg.Frus[eeprom] {
			if fc.InventoryPath == "" {
				return nil, fault.JsonFailure(eeprom, fmt.Errorf("fru entry without inventoryPath"))
			}
			info := FruInfo{
				EepromPath:               eeprom,
				InventoryPath:            qualifyInventoryPath(fc.InventoryPath),
				ConcurrentlyMaintainable: fc.ConcurrentlyMaintainable,
				ReplaceableAtStandby:     fc.ReplaceableAtStandby,
				Essential:                fc.EssentialFru,
				SystemVPD:                fc.IsSystemVPD,
				LocationCode:             locationCode(fc.ExtraInterfaces),
			}
			if fc.RedundantEeprom != "" {
				info.RedundantEeproms = append(info.RedundantEeproms, fc.RedundantEeprom)
			}
			info.RedundantEeproms = append(info.RedundantEeproms, fc.RedundantEeproms...)

			if _, dup := t.byInventory[info.InventoryPath]; dup {
				return nil, fault.JsonFailure(eeprom, fmt.Errorf("duplicate inventory path %s", info.InventoryPath))
			}
			idx := len(t.frus)
			t.frus = append(t.frus, info)
			t.byInventory[info.InventoryPath] = idx
			if _, ok := t.byEeprom[eeprom]; !ok {
				t.byEeprom[eeprom] = idx
			}
			if info.SystemVPD && t.systemIdx < 0 {
				t.systemIdx = idx
			}
		}
	}
	return t, nil
}

func (t *topology) lookup(path types.Path) (FruInfo, bool) {
	if idx, ok := t.byInventory[path]; ok {
		return t.frus[idx], true
	}
	if idx, ok := t.byEeprom[path]; ok {
		return t.frus[idx], true
	}
	return FruInfo{}, false
}

// qualifyInventoryPath prefixes relative config paths with the inventory root.
func qualifyInventoryPath(p string) types.Path {
	if types.IsInventoryPath(p) {
		return p
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return types.InventoryPrefix + p
}

func locationCode(extra map[string]map[string]any) string {
	props, ok := extra[locationInterface]
	if !ok {
		return ""
	}
	if lc, ok := props["LocationCode"].(string); ok {
		return lc
	}
	return ""
}
