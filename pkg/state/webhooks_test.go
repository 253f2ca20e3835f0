package state

import (
	"testing"

	"github.com/raywall/spec-emulator/pkg/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhooks_CreateAndDuplicate(t *testing.T) {
	w := newTestStore(Options{NewID: counterIDs()}).Webhooks

	hook := Webhook{
		System:      "data",
		Event:       "dm.version.added",
		CallbackURL: "https://example.com/cb",
		Scope:       WebhookScope{Folder: "urn:folder"},
	}
	created, err := w.Create(hook)
	require.NoError(t, err)
	assert.Equal(t, "id1", created.HookID)
	assert.Equal(t, HookActive, created.Status)

	_, err = w.Create(hook)
	assert.True(t, faults.IsCategory(err, faults.ConflictError))

	// escopo diferente não é duplicata
	hook.Scope = WebhookScope{Folder: "urn:other"}
	_, err = w.Create(hook)
	require.NoError(t, err)

	_, err = w.Create(Webhook{System: "derivative", Event: "extraction.finished", CallbackURL: "https://example.com/cb"})
	require.NoError(t, err)

	for _, bad := range []Webhook{
		{System: "data", Event: "e", CallbackURL: "ftp://x"},
		{System: "data", Event: "e", CallbackURL: "not a url"},
		{Event: "e", CallbackURL: "https://x"},
		{System: "data", Event: "e", CallbackURL: "https://x", Status: "paused"},
	} {
		_, err := w.Create(bad)
		assert.True(t, faults.IsCategory(err, faults.ValidationError), bad.CallbackURL)
	}

	assert.Len(t, w.ListBySystem("data"), 2)
	assert.Len(t, w.List("data", "dm.version.added"), 2)
	assert.Len(t, w.List("data", "dm.folder.added"), 0)
	assert.Len(t, w.All(), 3)
}

func TestWebhooks_GetUpdateDelete(t *testing.T) {
	w := newTestStore(Options{}).Webhooks
	created, err := w.Create(Webhook{System: "data", Event: "dm.version.added", CallbackURL: "http://localhost/cb"})
	require.NoError(t, err)

	_, err = w.Get("data", "dm.version.added", created.HookID)
	require.NoError(t, err)
	_, err = w.Get("derivative", "dm.version.added", created.HookID)
	assert.True(t, faults.IsCategory(err, faults.NotFoundError))

	inactive := HookInactive
	updated, err := w.Update("data", "dm.version.added", created.HookID, WebhookPatch{Status: &inactive})
	require.NoError(t, err)
	assert.Equal(t, HookInactive, updated.Status)

	bad := "paused"
	_, err = w.Update("data", "dm.version.added", created.HookID, WebhookPatch{Status: &bad})
	assert.True(t, faults.IsCategory(err, faults.ValidationError))

	require.NoError(t, w.Delete("data", "dm.version.added", created.HookID))
	assert.Empty(t, w.ListBySystem("data"))
	assert.True(t, faults.IsCategory(w.Delete("data", "dm.version.added", created.HookID), faults.NotFoundError))

	// após remover, a mesma combinação pode ser registrada de novo
	_, err = w.Create(Webhook{System: "data", Event: "dm.version.added", CallbackURL: "http://localhost/cb"})
	assert.NoError(t, err)
}
