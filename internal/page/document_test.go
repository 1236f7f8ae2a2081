package page

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overchat/overchat/internal/protocol"
)

// recordSink captures ops for assertions.
type recordSink struct {
	mu  sync.Mutex
	ops []protocol.DOMOp
}

func (r *recordSink) Apply(op protocol.DOMOp) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	return nil
}

func (r *recordSink) all() []protocol.DOMOp {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.DOMOp, len(r.ops))
	copy(out, r.ops)
	return out
}

func TestSetLocationDetectsChange(t *testing.T) {
	d := NewDocument(nil)
	assert.True(t, d.SetLocation("https://glimmer.tv/alpha"))
	assert.False(t, d.SetLocation("https://glimmer.tv/alpha"))
	assert.True(t, d.SetLocation("https://glimmer.tv/beta"))
	assert.Equal(t, "https://glimmer.tv/beta", d.Location())
}

func TestPresenceTracking(t *testing.T) {
	d := NewDocument(nil)
	d.MarkPresent(".chat-shell", ".sidebar")
	assert.True(t, d.Has(".chat-shell"))
	assert.False(t, d.Has(".player"))

	d.MarkAbsent(".chat-shell")
	assert.False(t, d.Has(".chat-shell"))
	assert.True(t, d.Has(".sidebar"))
}

func TestHideShowForwardsOps(t *testing.T) {
	sink := &recordSink{}
	d := NewDocument(sink)
	d.MarkPresent(".chat-shell")

	require.NoError(t, d.Hide(".chat-shell"))
	assert.True(t, d.Hidden(".chat-shell"))
	// Hiding toggles visibility, never presence.
	assert.True(t, d.Has(".chat-shell"))

	require.NoError(t, d.Show(".chat-shell"))
	assert.False(t, d.Hidden(".chat-shell"))

	ops := sink.all()
	require.Len(t, ops, 2)
	assert.Equal(t, protocol.OpHide, ops[0].Op)
	assert.Equal(t, protocol.OpShow, ops[1].Op)
	assert.Equal(t, ".chat-shell", ops[1].Selector)
}

func TestMountLifecycle(t *testing.T) {
	sink := &recordSink{}
	d := NewDocument(sink)

	require.NoError(t, d.AddMount("m1", "alpha", ".chat-shell"))
	require.NoError(t, d.AddMount("m2", "alpha", ".sidebar"))
	assert.True(t, d.HasMount("m1"))

	mounts := d.Mounts()
	require.Len(t, mounts, 2)
	// Earliest-created first.
	assert.Equal(t, "m1", mounts[0].ID)
	assert.Equal(t, "m2", mounts[1].ID)

	require.NoError(t, d.RemoveMount("m1"))
	assert.False(t, d.HasMount("m1"))
	assert.Error(t, d.RemoveMount("m1"))

	ops := sink.all()
	require.Len(t, ops, 3)
	assert.Equal(t, protocol.OpMount, ops[0].Op)
	assert.Equal(t, protocol.OpUnmount, ops[2].Op)
	assert.Equal(t, "m1", ops[2].MountID)
}

func TestClobberedMountReportedAsRemoval(t *testing.T) {
	d := NewDocument(nil)
	require.NoError(t, d.AddMount("m1", "alpha", ".chat-shell"))

	// The page script reports the mount container disappearing like any
	// other removed selector.
	d.MarkAbsent(MountSelector("m1"))
	assert.False(t, d.HasMount("m1"))
	assert.Empty(t, d.Mounts())
}

func TestMountSelectorsNeverEnterPresence(t *testing.T) {
	d := NewDocument(nil)
	d.MarkPresent(MountSelector("m9"))
	assert.False(t, d.Has(MountSelector("m9")))
	assert.False(t, d.HasMount("m9"))
}

func TestMetaMerge(t *testing.T) {
	d := NewDocument(nil)
	d.SetMeta(map[string]string{"channelId": "alpha"})
	d.SetMeta(map[string]string{"title": "live"})
	assert.Equal(t, "alpha", d.Meta("channelId"))
	assert.Equal(t, "live", d.Meta("title"))
	assert.Empty(t, d.Meta("missing"))
}
