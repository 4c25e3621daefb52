package manager

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pithecene-io/vpd/collection"
	"github.com/pithecene-io/vpd/eventlog"
	"github.com/pithecene-io/vpd/fault"
	"github.com/pithecene-io/vpd/types"
	"github.com/pithecene-io/vpd/worker"
)

// Internal return codes carried in fault record provenance.
const (
	rcKeywordWrite uint8 = iota + 1
	rcRedundantWrite
	rcCollect
	rcCollectRejected
	rcDelete
)

// FruStatus is one FRU's topology entry and collection state.
type FruStatus struct {
	Path                     types.Path             `json:"path" yaml:"path"`
	HwPath                   types.Path             `json:"hw_path" yaml:"hw_path"`
	Status                   types.CollectionStatus `json:"status" yaml:"status"`
	Present                  bool                   `json:"present" yaml:"present"`
	SystemVPD                bool                   `json:"system_vpd,omitempty" yaml:"system_vpd,omitempty"`
	ConcurrentlyMaintainable bool                   `json:"concurrently_maintainable" yaml:"concurrently_maintainable"`
	ReplaceableAtStandby     bool                   `json:"replaceable_at_standby" yaml:"replaceable_at_standby"`
}

// --- Keyword access ---

// UpdateKeyword writes params to the primary EEPROM of path, then to each
// redundant EEPROM, and returns the bytes written to the primary. Any
// failure before or during the primary write is reported as a fault record
// and returns -1; redundant EEPROMs are not attempted. Redundant failures are
// reported individually and do not change the result.
func (m *Manager) UpdateKeyword(ctx context.Context, path types.Path, params types.WriteParams) int {
	m.collector.IncKeywordWrite()
	n, err := call(ctx, m.loop, func() int {
		return m.updateKeyword(ctx, path, params)
	})
	if err != nil {
		m.collector.IncKeywordWriteFailure()
		m.logger.Warn("keyword update not run", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
		return -1
	}
	return n
}

func (m *Manager) updateKeyword(ctx context.Context, path types.Path, params types.WriteParams) int {
	start := time.Now()

	if err := params.Validate(); err != nil {
		m.primaryWriteFailed(path, "", params, &fault.Error{Type: types.InternalFailure, Op: "write", Path: path, Err: err})
		return -1
	}
	paths, err := m.worker.ResolvePaths(path)
	if err != nil {
		m.primaryWriteFailed(path, "", params, err)
		return -1
	}

	n, err := m.worker.WriteBytes(ctx, paths.Primary, params)
	if err != nil {
		m.primaryWriteFailed(paths.Inventory, paths.Primary, params, err)
		return -1
	}

	for _, r := range paths.Redundant {
		if _, err := m.worker.WriteBytes(ctx, r, params); err != nil {
			m.redundantWriteFailed(paths.Inventory, r, params, err)
		}
	}

	if err := m.publisher.UpdateKeyword(paths.Inventory, params.ReadParams, params.Value); err != nil {
		// Unpublished FRUs pick the value up on their next collection.
		m.logger.Debug("published keyword not updated", map[string]any{
			"path":    paths.Inventory,
			"keyword": params.String(),
			"error":   err.Error(),
		})
	}

	m.collector.ObserveOperation("write", time.Since(start))
	m.logger.Info("keyword updated", map[string]any{
		"path":      paths.Inventory,
		"keyword":   params.String(),
		"bytes":     n,
		"redundant": len(paths.Redundant),
	})
	return n
}

func (m *Manager) primaryWriteFailed(invPath, hwPath types.Path, params types.WriteParams, err error) {
	m.collector.IncKeywordWriteFailure()
	m.logger.Error("keyword update failed", map[string]any{
		"path":    invPath,
		"keyword": params.String(),
		"error":   err.Error(),
	})

	var errno syscall.Errno
	if hwPath != "" && errors.As(err, &errno) {
		ev := eventlog.HereDevice(rcKeywordWrite)
		ev.UserData1 = &eventlog.UserData{Key: "keyword", Value: params.String()}
		ev.UserData2 = &eventlog.UserData{Key: "error", Value: err.Error()}
		m.events.CreateAsyncPelWithI2cDeviceCallout(
			fault.TypeOf(err), types.SeverityError,
			[]types.DeviceCallout{{DevicePath: hwPath, Errno: int(errno)}},
			ev,
		)
		return
	}

	errType, desc := eventlog.FromError(err)
	ev := eventlog.Here(rcKeywordWrite, desc)
	ev.UserData1 = eventlog.Opt(params.String())
	m.events.CreateAsyncPelWithInventoryCallout(
		errType, types.SeverityError,
		[]types.InventoryCallout{{Path: invPath}},
		ev,
	)
}

func (m *Manager) redundantWriteFailed(invPath, hwPath types.Path, params types.WriteParams, err error) {
	m.collector.IncRedundantWriteFailure()
	m.logger.Warn("redundant eeprom not updated", map[string]any{
		"path":      invPath,
		"redundant": hwPath,
		"keyword":   params.String(),
		"error":     err.Error(),
	})

	ev := eventlog.Here(rcRedundantWrite, fault.Message(fault.ErrRedundantWrite)+": "+err.Error())
	ev.UserData1 = eventlog.Opt(hwPath)
	ev.UserData2 = eventlog.Opt(params.String())
	m.events.CreateAsyncPelWithInventoryCallout(
		types.WriteFailure, types.SeverityWarning,
		[]types.InventoryCallout{{Path: invPath}},
		ev,
	)
}

// ReadKeyword reads params from the primary EEPROM of path. Every failure
// is returned as a ReadFailure *fault.Error; the cause stays in the chain.
func (m *Manager) ReadKeyword(ctx context.Context, path types.Path, params types.ReadParams) (types.BinaryVector, error) {
	m.collector.IncKeywordRead()
	val, err := callErr(ctx, m.loop, func() (types.BinaryVector, error) {
		return m.readKeyword(ctx, path, params)
	})
	if err != nil {
		m.collector.IncKeywordReadFailure()
		return nil, readFailure(path, err)
	}
	return val, nil
}

// readFailure wraps err as a ReadFailure unless it already is one.
func readFailure(path types.Path, err error) error {
	var fe *fault.Error
	if errors.As(err, &fe) && fe.Type == types.ReadFailure {
		return err
	}
	return fault.ReadFailure(path, err)
}

func (m *Manager) readKeyword(ctx context.Context, path types.Path, params types.ReadParams) (types.BinaryVector, error) {
	start := time.Now()
	if err := params.Validate(); err != nil {
		return nil, fault.ReadFailure(path, err)
	}
	paths, err := m.worker.ResolvePaths(path)
	if err != nil {
		return nil, fault.ReadFailure(path, err)
	}
	val, err := m.worker.ReadBytes(ctx, paths.Primary, params)
	if err != nil {
		return nil, readFailure(paths.Primary, err)
	}
	m.collector.ObserveOperation("read", time.Since(start))
	return val, nil
}

// --- Collection ---

// CollectSingleFruVPD starts collection of one FRU and returns without
// waiting for it. Unknown and non concurrently maintainable FRUs are
// rejected with a fault record and nothing is dispatched.
func (m *Manager) CollectSingleFruVPD(ctx context.Context, invPath types.Path) error {
	_, err := callErr(ctx, m.loop, func() (struct{}, error) {
		return struct{}{}, m.collectSingle(invPath, true)
	})
	return err
}

func (m *Manager) collectSingle(path types.Path, requireMaintainable bool) error {
	info, err := m.worker.Fru(path)
	if err != nil {
		m.rejectCollection(path, err)
		return err
	}
	if requireMaintainable {
		if err := m.checkMaintainable("collect", info.InventoryPath); err != nil {
			m.rejectCollection(info.InventoryPath, err)
			return err
		}
	}
	return m.startCollection(info)
}

// checkMaintainable fails unless the worker reports path as concurrently
// maintainable.
func (m *Manager) checkMaintainable(op string, path types.Path) error {
	ok, err := m.worker.IsConcurrentlyMaintainable(path)
	if err != nil {
		return err
	}
	if !ok {
		return &fault.Error{
			Type: types.InternalFailure,
			Op:   op,
			Path: path,
			Err:  fault.ErrNotConcurrentlyMaintainable,
		}
	}
	return nil
}

func (m *Manager) rejectCollection(path types.Path, err error) {
	m.collector.IncCollectionRejected()
	m.logger.Warn("collection rejected", map[string]any{
		"path":  path,
		"error": err.Error(),
	})
	errType, desc := eventlog.FromError(err)
	m.events.CreateAsyncPelWithInventoryCallout(
		errType, types.SeverityError,
		[]types.InventoryCallout{{Path: path}},
		eventlog.Here(rcCollectRejected, desc),
	)
}

// startCollection moves info to InProgress and dispatches a collection
// worker. Runs on the loop.
func (m *Manager) startCollection(info worker.FruInfo) error {
	ctx := m.context()
	if ctx.Err() != nil {
		return ErrNotRunning
	}
	if err := m.tracker.Start(ctx, info.InventoryPath); err != nil {
		return err
	}
	m.setStatus(info.InventoryPath, types.CollectionInProgress)
	m.publisher.SetSystemCollectionStatus(types.CollectionInProgress)
	m.collector.IncCollectionStarted()

	m.workers.Add(1)
	go m.collectFru(ctx, info)

	m.status.Arm(ctx)
	m.logger.Debug("collection dispatched", map[string]any{
		"path":   info.InventoryPath,
		"hwpath": info.EepromPath,
	})
	return nil
}

// collectFru runs off the loop. It is the only writer of info's
// collection state until it returns.
func (m *Manager) collectFru(ctx context.Context, info worker.FruInfo) {
	defer m.workers.Done()

	if err := m.sem.Acquire(ctx, 1); err != nil {
		m.finishCollection(ctx, info, err, 0)
		return
	}
	defer m.sem.Release(1)

	start := time.Now()
	vpd, err := m.worker.CollectFru(ctx, info.EepromPath)
	if err == nil {
		if perr := m.publisher.PublishVPD(info.InventoryPath, vpd); perr != nil {
			err = fault.Wrap(types.DbusFailure, "publish", info.InventoryPath, perr)
		}
	}
	m.finishCollection(ctx, info, err, time.Since(start))
}

func (m *Manager) finishCollection(ctx context.Context, info worker.FruInfo, err error, took time.Duration) {
	// The tracker transition is recorded even when ctx is done. It is the
	// worker's last state write: once the entry is terminal a delete may
	// reset it and publish NotStarted.
	tctx := context.WithoutCancel(ctx)

	if err != nil {
		m.setStatus(info.InventoryPath, types.CollectionFailed)
		if terr := m.tracker.Fail(tctx, info.InventoryPath); terr != nil {
			m.logger.Error("collection state", map[string]any{"error": terr.Error()})
		}
		m.collector.IncCollectionFailed()
		m.logger.Error("collection failed", map[string]any{
			"path":  info.InventoryPath,
			"error": err.Error(),
		})
		if ctx.Err() != nil {
			return
		}
		errType, desc := eventlog.FromError(err)
		ev := eventlog.Here(rcCollect, desc)
		ev.UserData1 = eventlog.Opt(info.EepromPath)
		m.events.CreateAsyncPelWithInventoryCallout(
			errType, types.SeverityError,
			[]types.InventoryCallout{{Path: info.InventoryPath}},
			ev,
		)
		return
	}

	m.setStatus(info.InventoryPath, types.CollectionCompleted)
	if terr := m.tracker.Complete(tctx, info.InventoryPath); terr != nil {
		m.logger.Error("collection state", map[string]any{"error": terr.Error()})
	}
	m.collector.IncCollectionCompleted()
	m.collector.ObserveOperation("collect", took)
	m.logger.Info("collection completed", map[string]any{
		"path":        info.InventoryPath,
		"duration_ms": took.Milliseconds(),
	})
}

func (m *Manager) setStatus(invPath types.Path, status types.CollectionStatus) {
	if err := m.publisher.SetCollectionStatus(invPath, status); err != nil {
		m.logger.Warn("collection status not published", map[string]any{
			"path":   invPath,
			"status": string(status),
			"error":  err.Error(),
		})
	}
}

// systemCollectionDone runs on the loop once every tracked FRU is terminal.
func (m *Manager) systemCollectionDone(entries []collection.Entry) {
	failed := 0
	for _, e := range entries {
		if e.Status == types.CollectionFailed {
			failed++
		}
	}
	m.publisher.SetSystemCollectionStatus(types.CollectionCompleted)
	m.logger.Info("system collection complete", map[string]any{
		"frus":   len(entries),
		"failed": failed,
	})
}

// DeleteSingleFruVPD clears the published VPD of a concurrently
// maintainable FRU, marks it not present and resets its collection state.
func (m *Manager) DeleteSingleFruVPD(ctx context.Context, invPath types.Path) error {
	_, err := callErr(ctx, m.loop, func() (struct{}, error) {
		err := m.deleteFru(invPath)
		if err != nil {
			m.logger.Error("fru deletion failed", map[string]any{
				"path":  invPath,
				"error": err.Error(),
			})
			errType, desc := eventlog.FromError(err)
			m.events.CreateAsyncPelWithInventoryCallout(
				errType, types.SeverityError,
				[]types.InventoryCallout{{Path: invPath}},
				eventlog.Here(rcDelete, desc),
			)
		}
		return struct{}{}, err
	})
	return err
}

func (m *Manager) deleteFru(path types.Path) error {
	info, err := m.worker.Fru(path)
	if err != nil {
		return err
	}
	if err := m.checkMaintainable("delete", info.InventoryPath); err != nil {
		return err
	}
	if err := m.tracker.Reset(info.InventoryPath); err != nil {
		return &fault.Error{Type: types.InternalFailure, Op: "delete", Path: info.InventoryPath, Err: err}
	}
	if err := m.publisher.ClearVPD(info.InventoryPath); err != nil {
		return fault.Wrap(types.DbusFailure, "delete", info.InventoryPath, err)
	}
	if err := m.publisher.SetPresent(info.InventoryPath, false); err != nil {
		return fault.Wrap(types.DbusFailure, "delete", info.InventoryPath, err)
	}
	m.setStatus(info.InventoryPath, types.CollectionNotStarted)
	m.collector.IncFruDeletion()
	m.logger.Info("fru deleted", map[string]any{"path": info.InventoryPath})
	return nil
}

// PerformVPDRecollection restarts collection of every FRU replaceable at
// standby. A FRU that cannot be started does not stop the others; the
// failures are returned joined.
func (m *Manager) PerformVPDRecollection(ctx context.Context) error {
	var targets []worker.FruInfo
	for _, info := range m.worker.Frus() {
		if info.ReplaceableAtStandby {
			targets = append(targets, info)
		}
	}
	m.logger.Info("recollection requested", map[string]any{"frus": len(targets)})

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.MaxConcurrent)
	for _, info := range targets {
		g.Go(func() error {
			_, err := callErr(gctx, m.loop, func() (struct{}, error) {
				return struct{}{}, m.collectSingle(info.InventoryPath, false)
			})
			if errors.Is(err, ErrNotRunning) {
				return err
			}
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// --- Getters ---

// GetExpandedLocationCode returns the location code of invPath with its
// system placeholder expanded from the system VPD.
func (m *Manager) GetExpandedLocationCode(ctx context.Context, invPath types.Path) (string, error) {
	return callErr(ctx, m.loop, func() (string, error) {
		info, err := m.worker.Fru(invPath)
		if err != nil {
			return "", err
		}
		if info.LocationCode == "" {
			return "", fault.Internal("location-code", info.InventoryPath, errors.New("no location code in system config"))
		}
		sys, ok := m.worker.SystemFru()
		if !ok {
			return "", fault.Internal("location-code", info.InventoryPath, errors.New("no system vpd fru"))
		}
		return worker.ExpandLocationCode(info.LocationCode, sys.InventoryPath, m.publisher)
	})
}

// GetHwPath returns the primary EEPROM path of invPath.
func (m *Manager) GetHwPath(ctx context.Context, invPath types.Path) (string, error) {
	return callErr(ctx, m.loop, func() (string, error) {
		info, err := m.worker.Fru(invPath)
		if err != nil {
			return "", err
		}
		return info.EepromPath, nil
	})
}

// CollectionStatus returns the collection state of invPath. Running and
// recently finished collections come from the tracker; settled ones from
// the published inventory.
func (m *Manager) CollectionStatus(ctx context.Context, invPath types.Path) (types.CollectionStatus, error) {
	return callErr(ctx, m.loop, func() (types.CollectionStatus, error) {
		info, err := m.worker.Fru(invPath)
		if err != nil {
			return "", err
		}
		return m.statusOf(info.InventoryPath), nil
	})
}

func (m *Manager) statusOf(invPath types.Path) types.CollectionStatus {
	if s := m.tracker.Status(invPath); s != types.CollectionNotStarted {
		return s
	}
	return m.publisher.CollectionStatus(invPath)
}

// SystemCollectionComplete reports whether the last round of collection has
// finished for every FRU.
func (m *Manager) SystemCollectionComplete() bool {
	return m.publisher.SystemCollectionStatus() == types.CollectionCompleted
}

// Frus returns every FRU in topology order with its collection state.
func (m *Manager) Frus(ctx context.Context) ([]FruStatus, error) {
	return call(ctx, m.loop, func() []FruStatus {
		frus := m.worker.Frus()
		out := make([]FruStatus, 0, len(frus))
		for _, info := range frus {
			out = append(out, FruStatus{
				Path:                     info.InventoryPath,
				HwPath:                   info.EepromPath,
				Status:                   m.statusOf(info.InventoryPath),
				Present:                  m.publisher.IsPublished(info.InventoryPath),
				SystemVPD:                info.SystemVPD,
				ConcurrentlyMaintainable: info.ConcurrentlyMaintainable,
				ReplaceableAtStandby:     info.ReplaceableAtStandby,
			})
		}
		return out
	})
}
