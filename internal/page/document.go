// Package page mirrors one host page inside the daemon. The injected page
// script streams structural observations in; the planner's writes flow back
// out through an OpSink. The mirror is the only view of the page the core
// ever sees, so components stay testable without a browser.
package page

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/overchat/overchat/internal/protocol"
)

// MountPrefix is the selector prefix for overlay mount containers. The page
// script reports mounts back with this prefix so clobbered instances are
// visible as ordinary removals.
const MountPrefix = "#overchat-mount-"

// MountSelector returns the selector for a mount container.
func MountSelector(mountID string) string {
	return MountPrefix + mountID
}

// OpSink receives DOM write operations destined for the host page.
type OpSink interface {
	Apply(op protocol.DOMOp) error
}

// NopSink discards operations. Useful in tests and during teardown.
type NopSink struct{}

func (NopSink) Apply(protocol.DOMOp) error { return nil }

// Mount records one overlay container present on the page. Seq orders
// mounts by creation even when timestamps collide.
type Mount struct {
	ID        string
	Key       string
	Anchor    string
	CreatedAt time.Time
	Seq       int64
}

// Document is the in-memory mirror of a host page: location, metadata,
// element presence, visibility and overlay mounts. Reads and writes arrive
// from the bridge reader and the reconcile loop, so access is mutex-guarded.
type Document struct {
	mu       sync.RWMutex
	location string
	meta     map[string]string
	present  map[string]bool
	hidden   map[string]bool
	mounts   map[string]Mount
	seq      int64
	sink     OpSink
}

// NewDocument returns an empty mirror writing ops to sink.
func NewDocument(sink OpSink) *Document {
	if sink == nil {
		sink = NopSink{}
	}
	return &Document{
		meta:    make(map[string]string),
		present: make(map[string]bool),
		hidden:  make(map[string]bool),
		mounts:  make(map[string]Mount),
		sink:    sink,
	}
}

// SetLocation records the current page URL. Returns true when it changed,
// which is how client-side navigations are detected.
func (d *Document) SetLocation(loc string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.location == loc {
		return false
	}
	d.location = loc
	return true
}

// Location returns the last observed page URL.
func (d *Document) Location() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.location
}

// SetMeta merges page metadata key/value pairs.
func (d *Document) SetMeta(meta map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, v := range meta {
		d.meta[k] = v
	}
}

// Meta returns a metadata value, or "" when absent.
func (d *Document) Meta(key string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.meta[key]
}

// MarkPresent records selectors the page script observed appearing. A mount
// selector appearing is ignored: mounts are created through Mount only.
func (d *Document) MarkPresent(selectors ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, sel := range selectors {
		if strings.HasPrefix(sel, MountPrefix) {
			continue
		}
		d.present[sel] = true
	}
}

// MarkAbsent records selectors the page script observed disappearing. Mount
// selectors in the removal list mean the host page clobbered an overlay
// instance; the mount record is dropped so the reconcile loop rebuilds it.
func (d *Document) MarkAbsent(selectors ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, sel := range selectors {
		if id, ok := strings.CutPrefix(sel, MountPrefix); ok {
			delete(d.mounts, id)
			continue
		}
		delete(d.present, sel)
		delete(d.hidden, sel)
	}
}

// Has reports whether a host element is currently present.
func (d *Document) Has(selector string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.present[selector]
}

// Hidden reports whether a host element is currently hidden by us.
func (d *Document) Hidden(selector string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.hidden[selector]
}

// Hide suppresses a host element by style. Presence is untouched so the host
// page's own layout logic is not destabilized.
func (d *Document) Hide(selector string) error {
	d.mu.Lock()
	d.hidden[selector] = true
	d.mu.Unlock()
	return d.sink.Apply(protocol.DOMOp{Op: protocol.OpHide, Selector: selector})
}

// Show restores a previously hidden host element.
func (d *Document) Show(selector string) error {
	d.mu.Lock()
	delete(d.hidden, selector)
	d.mu.Unlock()
	return d.sink.Apply(protocol.DOMOp{Op: protocol.OpShow, Selector: selector})
}

// AddMount creates an overlay mount container next to the anchor element.
func (d *Document) AddMount(mountID, key, anchor string) error {
	d.mu.Lock()
	d.seq++
	d.mounts[mountID] = Mount{
		ID:        mountID,
		Key:       key,
		Anchor:    anchor,
		CreatedAt: time.Now(),
		Seq:       d.seq,
	}
	d.mu.Unlock()
	return d.sink.Apply(protocol.DOMOp{Op: protocol.OpMount, Selector: anchor, MountID: mountID, Key: key})
}

// RemoveMount removes an overlay mount container.
func (d *Document) RemoveMount(mountID string) error {
	d.mu.Lock()
	_, ok := d.mounts[mountID]
	delete(d.mounts, mountID)
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("mount %q not present", mountID)
	}
	return d.sink.Apply(protocol.DOMOp{Op: protocol.OpUnmount, MountID: mountID})
}

// HasMount reports whether a mount container is still present.
func (d *Document) HasMount(mountID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.mounts[mountID]
	return ok
}

// Mounts returns all mount records, earliest-created first.
func (d *Document) Mounts() []Mount {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Mount, 0, len(d.mounts))
	for _, m := range d.mounts {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}
