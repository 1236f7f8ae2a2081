// Package platform describes how to read each supported streaming site. A
// platform is a thin selector table plus channel extraction rules; all logic
// that consumes it lives in the resolver and the planner. One Spec is
// selected per page context at hello time.
package platform

import (
	"net/url"
	"strings"
)

// Spec is the capability set for one platform variant.
type Spec struct {
	// Name identifies the platform in logs.
	Name string

	// Hosts are the page hosts this spec serves. A leading "*." matches
	// subdomains.
	Hosts []string

	// ExcludedSegments are first path segments that are known system or
	// listing pages, never channels.
	ExcludedSegments []string

	// MetaChannelKeys are page metadata keys consulted, in order, when the
	// path alone does not identify a channel.
	MetaChannelKeys []string

	// MountAnchors are candidate mount anchor selectors, most specific and
	// stable first. The planner falls back through them in order.
	MountAnchors []string

	// NativeChatSelector is the host page's own chat widget, hidden (never
	// removed) while the overlay is mounted.
	NativeChatSelector string
}

// MetaLookup resolves a page metadata key to its value, "" when absent.
type MetaLookup func(key string) string

// Matches reports whether the spec serves the given page host.
func (s Spec) Matches(host string) bool {
	host = strings.ToLower(host)
	for _, h := range s.Hosts {
		if sub, ok := strings.CutPrefix(h, "*."); ok {
			if host == sub || strings.HasSuffix(host, "."+sub) {
				return true
			}
			continue
		}
		if host == h {
			return true
		}
	}
	return false
}

// IsEligiblePage reports whether a location can host the overlay at all.
// Listing and system pages are resolved to no channel later; here we only
// reject locations outside the platform.
func (s Spec) IsEligiblePage(loc *url.URL) bool {
	return loc != nil && s.Matches(loc.Hostname())
}

// ResolveChannelKey extracts the channel identity from a location, applying
// in order: structural path segment, exclusion set, metadata fallback.
// Returns "" when the page has no channel.
func (s Spec) ResolveChannelKey(loc *url.URL, meta MetaLookup) string {
	if !s.IsEligiblePage(loc) {
		return ""
	}

	seg := firstSegment(loc.Path)
	if seg != "" {
		for _, ex := range s.ExcludedSegments {
			if strings.EqualFold(seg, ex) {
				return ""
			}
		}
		return strings.ToLower(seg)
	}

	if meta != nil {
		for _, key := range s.MetaChannelKeys {
			if v := meta(key); v != "" {
				return strings.ToLower(v)
			}
		}
	}
	return ""
}

func firstSegment(path string) string {
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			return seg
		}
	}
	return ""
}

// Registry holds the known platform specs.
type Registry struct {
	specs []Spec
}

// NewRegistry builds a registry from the given specs.
func NewRegistry(specs ...Spec) *Registry {
	return &Registry{specs: specs}
}

// Select returns the spec serving the given host, chosen once at page load.
func (r *Registry) Select(host string) (Spec, bool) {
	for _, s := range r.specs {
		if s.Matches(host) {
			return s, true
		}
	}
	return Spec{}, false
}

// Builtin returns the registry of platforms shipped with the daemon.
func Builtin() *Registry {
	return NewRegistry(
		Spec{
			Name:  "glimmer",
			Hosts: []string{"*.glimmer.tv"},
			ExcludedSegments: []string{
				"directory", "videos", "settings", "search", "subscriptions",
				"wallet", "drops", "friends", "jobs", "p", "downloads",
			},
			MetaChannelKeys: []string{"channelId", "og:video:tag"},
			MountAnchors: []string{
				`[data-test="chat-shell"]`,
				".chat-shell",
				".right-column",
			},
			NativeChatSelector: ".stream-chat",
		},
		Spec{
			Name:             "vidgrid",
			Hosts:            []string{"vidgrid.live", "*.vidgrid.live"},
			ExcludedSegments: []string{"browse", "results", "feed", "account", "about"},
			MetaChannelKeys:  []string{"channelId"},
			MountAnchors: []string{
				"#chat-container",
				"#secondary-inner",
			},
			NativeChatSelector: "#chatframe",
		},
	)
}
