// Package channel derives the logical channel identity from observed page
// state and maps it to a backend routing identifier.
package channel

import (
	"net/url"

	"github.com/overchat/overchat/internal/page"
	"github.com/overchat/overchat/internal/platform"
)

// Resolver extracts the channel key for the page a document mirrors. The
// key is recomputed from page state on every call and carries no state of
// its own, so resolution is idempotent.
type Resolver struct {
	spec platform.Spec
}

// NewResolver builds a resolver for one platform.
func NewResolver(spec platform.Spec) *Resolver {
	return &Resolver{spec: spec}
}

// Resolve returns the channel key for the document's current location, or
// ok=false when the page has no channel (listing pages, system pages,
// unparseable locations). Callers treat ok=false as "tear down any active
// overlay, do nothing else"; it is a valid steady state, not an error.
func (r *Resolver) Resolve(doc *page.Document) (key string, ok bool) {
	loc, err := url.Parse(doc.Location())
	if err != nil || loc.Host == "" {
		return "", false
	}
	key = r.spec.ResolveChannelKey(loc, doc.Meta)
	return key, key != ""
}
