// Package worker provides the FRU topology and byte-level EEPROM access the
// manager coordinates, plus the inventory the collected VPD is published to.
package worker

import (
	"context"
	"errors"

	"github.com/pithecene-io/vpd/fault"
	"github.com/pithecene-io/vpd/log"
	"github.com/pithecene-io/vpd/types"
)

// Paths are the resolved locations of one FRU's VPD.
type Paths struct {
	// Primary is the EEPROM reads and writes go to first.
	Primary types.Path
	// Redundant are EEPROMs holding copies of the primary VPD.
	Redundant []types.Path
	// Inventory is the FRU's inventory object path.
	Inventory types.Path
}

// Worker is the manager's view of FRU topology and EEPROM I/O.
// Every path argument may be an EEPROM path or an inventory path unless
// named hwPath.
type Worker interface {
	ResolvePaths(path types.Path) (Paths, error)
	IsConcurrentlyMaintainable(path types.Path) (bool, error)
	ReadBytes(ctx context.Context, hwPath types.Path, params types.ReadParams) (types.BinaryVector, error)
	WriteBytes(ctx context.Context, hwPath types.Path, params types.WriteParams) (int, error)
	ResolveInventoryPath(hwPath types.Path) (types.Path, error)
	CollectFru(ctx context.Context, hwPath types.Path) (types.ParsedVPD, error)
	Frus() []FruInfo
	Fru(path types.Path) (FruInfo, error)
	SystemFru() (FruInfo, bool)
}

// Config configures a ConfigWorker.
type Config struct {
	// System is the decoded system config (required).
	System *SystemConfig
	// Parser performs EEPROM I/O (required).
	Parser Parser
	// Logger is optional.
	Logger *log.Logger
}

// ConfigWorker answers topology questions from a SystemConfig and delegates
// EEPROM I/O to a Parser.
type ConfigWorker struct {
	topo   *topology
	parser Parser
	logger *log.Logger
}

// New validates cfg and indexes the topology.
func New(cfg Config) (*ConfigWorker, error) {
	if cfg.System == nil {
		return nil, errors.New("worker: system config is required")
	}
	if cfg.Parser == nil {
		return nil, errors.New("worker: parser is required")
	}
	topo, err := buildTopology(cfg.System)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	logger.Debug("topology loaded", map[string]any{
		"frus": len(topo.frus),
	})
	return &ConfigWorker{topo: topo, parser: cfg.Parser, logger: logger}, nil
}

// ResolvePaths implements Worker.
func (w *ConfigWorker) ResolvePaths(path types.Path) (Paths, error) {
	info, ok := w.topo.lookup(path)
	if !ok {
		return Paths{}, fault.NotFound("resolve", path)
	}
	return Paths{
		Primary:   info.EepromPath,
		Redundant: append([]types.Path(nil), info.RedundantEeproms...),
		Inventory: info.InventoryPath,
	}, nil
}

// IsConcurrentlyMaintainable implements Worker.
func (w *ConfigWorker) IsConcurrentlyMaintainable(path types.Path) (bool, error) {
	info, ok := w.topo.lookup(path)
	if !ok {
		return false, fault.NotFound("maintainable", path)
	}
	return info.ConcurrentlyMaintainable, nil
}

// ReadBytes implements Worker.
func (w *ConfigWorker) ReadBytes(ctx context.Context, hwPath types.Path, params types.ReadParams) (types.BinaryVector, error) {
	return w.parser.ReadKeyword(ctx, hwPath, params)
}

// WriteBytes implements Worker.
func (w *ConfigWorker) WriteBytes(ctx context.Context, hwPath types.Path, params types.WriteParams) (int, error) {
	return w.parser.WriteKeyword(ctx, hwPath, params)
}

// ResolveInventoryPath implements Worker. Redundant EEPROMs resolve to the
// inventory path of the FRU they back.
func (w *ConfigWorker) ResolveInventoryPath(hwPath types.Path) (types.Path, error) {
	if info, ok := w.topo.lookup(hwPath); ok {
		return info.InventoryPath, nil
	}
	for _, info := range w.topo.frus {
		for _, r := range info.RedundantEeproms {
			if r == hwPath {
				return info.InventoryPath, nil
			}
		}
	}
	return "", fault.NotFound("resolve", hwPath)
}

// CollectFru implements Worker.
func (w *ConfigWorker) CollectFru(ctx context.Context, hwPath types.Path) (types.ParsedVPD, error) {
	vpd, err := w.parser.Parse(ctx, hwPath)
	if err != nil {
		return nil, err
	}
	w.logger.Debug("fru parsed", map[string]any{
		"path":    hwPath,
		"records": len(vpd),
	})
	return vpd, nil
}

// Frus implements Worker. FRUs are ordered by EEPROM path.
func (w *ConfigWorker) Frus() []FruInfo {
	return append([]FruInfo(nil), w.topo.frus...)
}

// Fru implements Worker.
func (w *ConfigWorker) Fru(path types.Path) (FruInfo, error) {
	info, ok := w.topo.lookup(path)
	if !ok {
		return FruInfo{}, fault.NotFound("fru", path)
	}
	return info, nil
}

// SystemFru implements Worker.
func (w *ConfigWorker) SystemFru() (FruInfo, bool) {
	if w.topo.systemIdx < 0 {
		return FruInfo{}, false
	}
	return w.topo.frus[w.topo.systemIdx], true
}

var _ Worker = (*ConfigWorker)(nil)
