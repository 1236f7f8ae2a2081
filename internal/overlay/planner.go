// Package overlay builds and retires the on-page presence of the injected
// chat UI. The planner only manipulates the page mirror; the bridge carries
// the resulting ops to the real page.
package overlay

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/overchat/overchat/internal/page"
	"github.com/overchat/overchat/internal/platform"
)

// Instance is the DOM-level presence of the overlay for one channel key.
type Instance struct {
	MountID   string
	Key       string
	Anchor    string
	CreatedAt time.Time
}

// Planner locates mount anchors and owns overlay creation and retirement.
type Planner struct {
	doc  *page.Document
	spec platform.Spec
	log  zerolog.Logger
}

// NewPlanner builds a planner for one page context.
func NewPlanner(doc *page.Document, spec platform.Spec, log zerolog.Logger) *Planner {
	return &Planner{doc: doc, spec: spec, log: log}
}

// Ensure creates a new overlay instance bound to key. Anchors are tried in
// the spec's order, most stable first. When no anchor resolves the failure
// is non-fatal: nil is returned, the native widget stays visible, and the
// next disruption retries. The native chat widget is hidden by style, never
// removed, so the host page's own layout logic stays intact.
func (p *Planner) Ensure(key string) *Instance {
	anchor := ""
	for _, sel := range p.spec.MountAnchors {
		if p.doc.Has(sel) {
			anchor = sel
			break
		}
	}
	if anchor == "" {
		p.log.Debug().Str("key", key).Msg("no mount anchor resolved; leaving native chat visible")
		return nil
	}

	if sel := p.spec.NativeChatSelector; sel != "" && p.doc.Has(sel) {
		if err := p.doc.Hide(sel); err != nil {
			p.log.Warn().Err(err).Str("selector", sel).Msg("failed to hide native chat")
		}
	}

	inst := &Instance{
		MountID:   uuid.NewString(),
		Key:       key,
		Anchor:    anchor,
		CreatedAt: time.Now(),
	}
	if err := p.doc.AddMount(inst.MountID, key, anchor); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("mount op failed")
		return nil
	}
	p.log.Info().Str("key", key).Str("anchor", anchor).Str("mount", inst.MountID).Msg("overlay mounted")
	return inst
}

// Retire removes an instance's DOM presence and restores the native widget.
// Safe to call for an instance the page already clobbered.
func (p *Planner) Retire(inst *Instance) {
	if inst == nil {
		return
	}
	if p.doc.HasMount(inst.MountID) {
		if err := p.doc.RemoveMount(inst.MountID); err != nil {
			p.log.Warn().Err(err).Str("mount", inst.MountID).Msg("unmount op failed")
		}
	}
	if sel := p.spec.NativeChatSelector; sel != "" && p.doc.Hidden(sel) {
		if err := p.doc.Show(sel); err != nil {
			p.log.Warn().Err(err).Str("selector", sel).Msg("failed to restore native chat")
		}
	}
	p.log.Info().Str("key", inst.Key).Str("mount", inst.MountID).Msg("overlay retired")
}

// RetireMountID removes a mount the planner did not create through Ensure,
// e.g. a duplicate observed by the reconcile loop.
func (p *Planner) RetireMountID(mountID string) {
	if p.doc.HasMount(mountID) {
		if err := p.doc.RemoveMount(mountID); err != nil {
			p.log.Warn().Err(err).Str("mount", mountID).Msg("unmount op failed")
		}
	}
}

// Alive reports whether the instance's mount container is still present on
// the page.
func (p *Planner) Alive(inst *Instance) bool {
	return inst != nil && p.doc.HasMount(inst.MountID)
}
