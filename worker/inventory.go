package worker

import (
	"sort"
	"sync"

	"github.com/pithecene-io/vpd/fault"
	"github.com/pithecene-io/vpd/types"
)

// Publisher is where collected VPD and collection status are published.
type Publisher interface {
	PublishVPD(invPath types.Path, vpd types.ParsedVPD) error
	UpdateKeyword(invPath types.Path, params types.ReadParams, value types.BinaryVector) error
	ClearVPD(invPath types.Path) error
	SetPresent(invPath types.Path, present bool) error
	SetCollectionStatus(invPath types.Path, status types.CollectionStatus) error
	SetSystemCollectionStatus(status types.CollectionStatus)
	CollectionStatus(invPath types.Path) types.CollectionStatus
	SystemCollectionStatus() types.CollectionStatus
	IsPublished(invPath types.Path) bool
	Keyword(invPath types.Path, params types.ReadParams) (types.BinaryVector, bool)
}

// Object is the published state of one inventory path.
type Object struct {
	Path             types.Path             `json:"path" yaml:"path"`
	Present          bool                   `json:"present" yaml:"present"`
	CollectionStatus types.CollectionStatus `json:"collection_status" yaml:"collection_status"`
	VPD              types.ParsedVPD        `json:"vpd,omitempty" yaml:"-"`
}

// MemoryInventory is an in-process Publisher.
type MemoryInventory struct {
	mu           sync.RWMutex
	objects      map[types.Path]*Object
	systemStatus types.CollectionStatus
}

// NewMemoryInventory creates an empty inventory.
func NewMemoryInventory() *MemoryInventory {
	return &MemoryInventory{
		objects:      make(map[types.Path]*Object),
		systemStatus: types.CollectionNotStarted,
	}
}

func (m *MemoryInventory) object(invPath types.Path) *Object {
	obj, ok := m.objects[invPath]
	if !ok {
		obj = &Object{Path: invPath, CollectionStatus: types.CollectionNotStarted}
		m.objects[invPath] = obj
	}
	return obj
}

// PublishVPD replaces the VPD of invPath and marks it present.
func (m *MemoryInventory) PublishVPD(invPath types.Path, vpd types.ParsedVPD) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj := m.object(invPath)
	obj.VPD = vpd.Clone()
	obj.Present = true
	return nil
}

// UpdateKeyword replaces one published keyword. The object must have
// published VPD.
func (m *MemoryInventory) UpdateKeyword(invPath types.Path, params types.ReadParams, value types.BinaryVector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[invPath]
	if !ok || obj.VPD == nil {
		return fault.NotFound("publish", invPath)
	}
	obj.VPD.Set(params, value)
	return nil
}

// ClearVPD drops the published VPD of invPath.
func (m *MemoryInventory) ClearVPD(invPath types.Path) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.object(invPath).VPD = nil
	return nil
}

// SetPresent sets the presence of invPath.
func (m *MemoryInventory) SetPresent(invPath types.Path, present bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.object(invPath).Present = present
	return nil
}

// SetCollectionStatus publishes the collection status of invPath.
func (m *MemoryInventory) SetCollectionStatus(invPath types.Path, status types.CollectionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.object(invPath).CollectionStatus = status
	return nil
}

// CollectionStatus returns the published collection status of invPath.
func (m *MemoryInventory) CollectionStatus(invPath types.Path) types.CollectionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[invPath]
	if !ok {
		return types.CollectionNotStarted
	}
	return obj.CollectionStatus
}

// SetSystemCollectionStatus publishes the system-wide collection status.
func (m *MemoryInventory) SetSystemCollectionStatus(status types.CollectionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.systemStatus = status
}

// SystemCollectionStatus returns the system-wide collection status.
func (m *MemoryInventory) SystemCollectionStatus() types.CollectionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.systemStatus
}

// IsPublished reports whether invPath has VPD.
func (m *MemoryInventory) IsPublished(invPath types.Path) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[invPath]
	return ok && obj.VPD != nil
}

// Keyword returns a published keyword value.
func (m *MemoryInventory) Keyword(invPath types.Path, params types.ReadParams) (types.BinaryVector, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[invPath]
	if !ok || obj.VPD == nil {
		return nil, false
	}
	val, ok := obj.VPD.Lookup(params)
	if !ok {
		return nil, false
	}
	return append(types.BinaryVector(nil), val...), true
}

// Object returns a copy of the published state of invPath.
func (m *MemoryInventory) Object(invPath types.Path) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[invPath]
	if !ok {
		return Object{}, false
	}
	return copyObject(obj), true
}

// Objects returns copies of every object, sorted by path.
func (m *MemoryInventory) Objects() []Object {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Object, 0, len(m.objects))
	for _, obj := range m.objects {
		out = append(out, copyObject(obj))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func copyObject(obj *Object) Object {
	cp := *obj
	if obj.VPD != nil {
		cp.VPD = obj.VPD.Clone()
	}
	return cp
}

var _ Publisher = (*MemoryInventory)(nil)
