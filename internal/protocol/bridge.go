package protocol

import "encoding/json"

// Page event types sent by the injected page script.
const (
	EventHello     = "hello"
	EventNavigated = "navigated"
	EventMutated   = "mutated"
	EventMeta      = "meta"
	EventEnabled   = "enabled"
)

// PageEvent is a frame received from the injected page script. The script
// reports structural observations only; it never decides what the overlay
// should do.
type PageEvent struct {
	Type string `json:"type"`

	// Host identifies the platform; sent once in the hello frame.
	Host string `json:"host,omitempty"`

	// Location is the page URL. Sent in hello and navigated frames.
	// Host pages route client-side, so navigations arrive without a new
	// bridge connection.
	Location string `json:"location,omitempty"`

	// Meta carries page metadata key/value pairs (hello and meta frames).
	Meta map[string]string `json:"meta,omitempty"`

	// Added and Removed list selectors whose presence changed (mutated
	// frames).
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`

	// Enabled carries the extension toggle (hello and enabled frames).
	Enabled *bool `json:"enabled,omitempty"`
}

// DOM operation kinds sent to the injected page script. Writes are limited
// to hide-by-style and appending elements the daemon itself owns; host page
// elements are never removed or permanently mutated.
const (
	OpHide    = "hide"
	OpShow    = "show"
	OpMount   = "mount"
	OpUnmount = "unmount"
)

// DOMOp is a write instruction for the page script.
type DOMOp struct {
	Op       string `json:"op"`
	Selector string `json:"selector,omitempty"`
	MountID  string `json:"mount_id,omitempty"`
	Key      string `json:"key,omitempty"`
}

// Relay frame types pushed to the overlay UI in the page.
const (
	RelayState   = "state"
	RelayMessage = "message"
)

// RelayFrame carries a session status record or an application message from
// the connector out to the overlay UI.
type RelayFrame struct {
	Type    string          `json:"type"`
	Key     string          `json:"key"`
	State   json.RawMessage `json:"state,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
}
