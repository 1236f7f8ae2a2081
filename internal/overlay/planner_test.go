package overlay

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overchat/overchat/internal/page"
	"github.com/overchat/overchat/internal/platform"
)

func testSpec() platform.Spec {
	return platform.Spec{
		Name:               "glimmer",
		MountAnchors:       []string{`[data-test="chat-shell"]`, ".chat-shell", ".right-column"},
		NativeChatSelector: ".stream-chat",
	}
}

func newPlanner(doc *page.Document) *Planner {
	return NewPlanner(doc, testSpec(), zerolog.Nop())
}

func TestEnsurePrefersFirstAnchor(t *testing.T) {
	doc := page.NewDocument(nil)
	doc.MarkPresent(`[data-test="chat-shell"]`, ".chat-shell", ".stream-chat")
	p := newPlanner(doc)

	inst := p.Ensure("alpha")
	require.NotNil(t, inst)
	assert.Equal(t, `[data-test="chat-shell"]`, inst.Anchor)
	assert.Equal(t, "alpha", inst.Key)
	assert.NotEmpty(t, inst.MountID)
	assert.True(t, p.Alive(inst))

	// The native widget is hidden, not removed.
	assert.True(t, doc.Hidden(".stream-chat"))
	assert.True(t, doc.Has(".stream-chat"))
}

func TestEnsureFallsBackThroughAnchors(t *testing.T) {
	doc := page.NewDocument(nil)
	doc.MarkPresent(".right-column")
	p := newPlanner(doc)

	inst := p.Ensure("alpha")
	require.NotNil(t, inst)
	assert.Equal(t, ".right-column", inst.Anchor)
}

func TestEnsureNoAnchorIsNonFatal(t *testing.T) {
	doc := page.NewDocument(nil)
	doc.MarkPresent(".stream-chat")
	p := newPlanner(doc)

	inst := p.Ensure("alpha")
	assert.Nil(t, inst)
	// Mount failure leaves the native widget untouched as the fallback.
	assert.False(t, doc.Hidden(".stream-chat"))
	assert.Empty(t, doc.Mounts())
}

func TestRetireRestoresNativeWidget(t *testing.T) {
	doc := page.NewDocument(nil)
	doc.MarkPresent(".chat-shell", ".stream-chat")
	p := newPlanner(doc)

	inst := p.Ensure("alpha")
	require.NotNil(t, inst)
	require.True(t, doc.Hidden(".stream-chat"))

	p.Retire(inst)
	assert.False(t, p.Alive(inst))
	assert.False(t, doc.Hidden(".stream-chat"))
	assert.Empty(t, doc.Mounts())
}

func TestRetireClobberedInstance(t *testing.T) {
	doc := page.NewDocument(nil)
	doc.MarkPresent(".chat-shell", ".stream-chat")
	p := newPlanner(doc)

	inst := p.Ensure("alpha")
	require.NotNil(t, inst)

	// Host page re-render wipes the mount before we retire it.
	doc.MarkAbsent(page.MountSelector(inst.MountID))
	require.False(t, p.Alive(inst))

	p.Retire(inst)
	assert.False(t, doc.Hidden(".stream-chat"))
}

func TestRetireNil(t *testing.T) {
	p := newPlanner(page.NewDocument(nil))
	p.Retire(nil) // must not panic
}

func TestRetireMountID(t *testing.T) {
	doc := page.NewDocument(nil)
	doc.MarkPresent(".chat-shell")
	p := newPlanner(doc)

	a := p.Ensure("alpha")
	require.NotNil(t, a)
	require.NoError(t, doc.AddMount("dup", "alpha", ".chat-shell"))

	p.RetireMountID("dup")
	assert.False(t, doc.HasMount("dup"))
	assert.True(t, p.Alive(a))
}
