package db

import (
	"reflect"
	"sync"

	"github.com/rust-qt/ritual-sub000/internal/rerror"
)

// Database is the in-memory, mutable view of the API Database (spec section
// 4.B). It is append-only: items are never deleted, only cleared in bulk by
// the maintenance steps. Indices are stable for the lifetime of the value.
// The orchestrator holds the single live reference for the duration of a
// run (spec section 9, "no process-wide mutable state").
type Database struct {
	mu           sync.Mutex
	CrateName    string
	CrateVersion string
	Environments []Environment

	items    []Item
	ffiItems []FFIItem

	dirty bool
}

// LoadOrCreate reads a Database from the given Store, or initializes an
// empty one if none exists yet (spec section 4.B).
func LoadOrCreate(store Store, crateName string) (*Database, error) {
	snap, ok, err := store.Load(crateName)
	if err != nil {
		return nil, rerror.WithContext("loading database for "+crateName, err)
	}
	if !ok {
		return &Database{CrateName: crateName, CrateVersion: "0.0.0"}, nil
	}
	return snapshotToDatabase(snap), nil
}

// AddTarget idempotently registers an environment and returns its stable
// index (spec section 4.B).
func (d *Database) AddTarget(env Environment) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, e := range d.Environments {
		if e == env {
			return i
		}
	}
	d.Environments = append(d.Environments, env)
	d.dirty = true
	return len(d.Environments) - 1
}

// AddItem deduplicates by structural equality of the item payload: if an
// equal item already exists, its origin set is unioned with targetIndex and
// AddItem returns (existingIndex, false). Otherwise the item is appended and
// AddItem returns (newIndex, true). This is the dedup invariant tested in
// spec section 8 ("add_item returns None on the second pass").
func (d *Database) AddItem(targetIndex int, payload ItemPayload, includeFile string, sourceLine int) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.items {
		if payloadEqual(d.items[i].Payload, payload) {
			if d.items[i].Origin == nil {
				d.items[i].Origin = map[int]bool{}
			}
			if !d.items[i].Origin[targetIndex] {
				d.items[i].Origin[targetIndex] = true
				d.dirty = true
			}
			return i, false
		}
	}

	idx := len(d.items)
	d.items = append(d.items, Item{
		Index:       idx,
		Payload:     payload,
		Origin:      map[int]bool{targetIndex: true},
		IncludeFile: includeFile,
		SourceLine:  sourceLine,
	})
	d.dirty = true
	return idx, true
}

// payloadEqual performs the structural-equality dedup key comparison (spec
// section 4.B). Source types embed pointer-heavy variant data, so we lean on
// reflect.DeepEqual over the normalized payload rather than hand-rolling a
// comparator per variant; the payload graph is acyclic (template arguments
// are values, never back-references -- spec section 9) so DeepEqual
// terminates.
func payloadEqual(a, b ItemPayload) bool {
	return reflect.DeepEqual(a, b)
}

// Items returns every Database Item (spec section 4.B enumerator).
func (d *Database) Items() []Item {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Item, len(d.items))
	copy(out, d.items)
	return out
}

// Item returns the item at idx.
func (d *Database) Item(idx int) (Item, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if idx < 0 || idx >= len(d.items) {
		return Item{}, false
	}
	return d.items[idx], true
}

// UpdateItem replaces the item at idx (used by analyzers/generators that
// refine an existing entry, e.g. attaching FFIChildren).
func (d *Database) UpdateItem(idx int, fn func(*Item)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if idx < 0 || idx >= len(d.items) {
		return
	}
	fn(&d.items[idx])
	d.dirty = true
}

// AddFFIItem appends a new FFI item, owned by sourceItem, and returns its
// stable index.
func (d *Database) AddFFIItem(sourceItem int, item FFIItem) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	item.Index = len(d.ffiItems)
	item.SourceItem = sourceItem
	d.ffiItems = append(d.ffiItems, item)
	if sourceItem >= 0 && sourceItem < len(d.items) {
		d.items[sourceItem].FFIChildren = append(d.items[sourceItem].FFIChildren, item.Index)
	}
	d.dirty = true
	return item.Index
}

// FFIItems enumerates all FFI items.
func (d *Database) FFIItems() []FFIItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]FFIItem, len(d.ffiItems))
	copy(out, d.ffiItems)
	return out
}

// FFIItemsMut applies fn to every FFI item in place (spec section 4.B
// ffi_items_mut enumerator), e.g. for the Probe Checker to record verdicts.
func (d *Database) FFIItemsMut(fn func(*FFIItem)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.ffiItems {
		fn(&d.ffiItems[i])
	}
	d.dirty = true
}

// FFIItem returns the FFI item at idx.
func (d *Database) FFIItem(idx int) (FFIItem, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if idx < 0 || idx >= len(d.ffiItems) {
		return FFIItem{}, false
	}
	return d.ffiItems[idx], true
}

// RecordCheck stores a verdict for (ffiItemIndex, envIndex). Success is
// monotone within a run: once a verdict is recorded it is not revised
// (spec section 4.F / section 8); any second write for the same pair,
// whatever its value, is ignored (the first verdict wins) and reported to
// the caller via the accepted return so it can log a warning, matching "receiving a duplicate verdict is
// not fatal: the second is ignored with a warning".
func (d *Database) RecordCheck(ffiItemIndex, envIndex int, success bool) (accepted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ffiItemIndex < 0 || ffiItemIndex >= len(d.ffiItems) {
		return false
	}
	item := &d.ffiItems[ffiItemIndex]
	if item.Checks == nil {
		item.Checks = map[checkKey]bool{}
	}
	key := checkKey{EnvIndex: envIndex}
	if _, exists := item.Checks[key]; exists {
		return false
	}
	item.Checks[key] = success
	d.dirty = true
	return true
}

// Check returns the recorded verdict for (ffiItemIndex, envIndex), if any.
func (d *Database) Check(ffiItemIndex, envIndex int) (success bool, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ffiItemIndex < 0 || ffiItemIndex >= len(d.ffiItems) {
		return false, false
	}
	return d.ffiItems[ffiItemIndex].hasCheck(envIndex)
}

// Clear resets the whole database to empty, keeping CrateName/CrateVersion
// and Environments (spec section 4.B / 4.H maintenance step "clear").
func (d *Database) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = nil
	d.ffiItems = nil
	d.dirty = true
}

// ClearFFI drops every FFI item and every item's FFIChildren list, without
// touching parsed source items (maintenance step "clear_ffi").
func (d *Database) ClearFFI() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ffiItems = nil
	for i := range d.items {
		d.items[i].FFIChildren = nil
	}
	d.dirty = true
}

// ClearRustInfo drops host-generator annotations (HostPath/HostKind/HostSize)
// from every item, without touching parsed source data or FFI items
// (maintenance step "clear_rust_info").
func (d *Database) ClearRustInfo() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.items {
		d.items[i].HostPath = ""
		d.items[i].HostKind = ""
		d.items[i].HostSize = 0
	}
	d.dirty = true
}

// Dirty reports whether the database has unpersisted mutations.
func (d *Database) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}

// markClean clears the dirty flag after a successful save.
func (d *Database) markClean() {
	d.dirty = false
}

// Persist writes the database to store if it has unpersisted mutations,
// then clears the dirty flag. The orchestrator calls this when a run ends,
// both after its last step succeeds and after the first failing step, so a
// partially-completed run's discoveries are not lost (spec section 9, "persist a dirty database even
// when the step that produced it errors").
func (d *Database) Persist(store Store) error {
	if !d.Dirty() {
		return nil
	}
	snap := databaseToSnapshot(d)
	if err := store.Save(d.CrateName, snap); err != nil {
		return err
	}
	d.markClean()
	return nil
}
