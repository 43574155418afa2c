package bot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkarpal/libro-go/internal/bot"
	"github.com/vkarpal/libro-go/internal/models"
	"github.com/vkarpal/libro-go/internal/store"
	"github.com/vkarpal/libro-go/internal/testutil"
)

func newHandler(t *testing.T) (*bot.Handler, *store.Store) {
	t.Helper()
	st := store.New(testutil.SetupTestDB(t))
	return bot.NewHandler(st), st
}

func TestToggleFlipsAndPersists(t *testing.T) {
	h, st := newHandler(t)

	on, err := h.Toggle(1, "strip_images")
	require.NoError(t, err)
	assert.True(t, on)

	p, err := st.GetProfile(1)
	require.NoError(t, err)
	assert.True(t, p.Options.StripImages)

	off, err := h.Toggle(1, "strip_images")
	require.NoError(t, err)
	assert.False(t, off)
}

func TestToggleUnknownIDFailsLoudly(t *testing.T) {
	h, _ := newHandler(t)
	_, err := h.Toggle(1, "toggle_mystery")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "toggle_mystery")
}

func TestParseToggleCoversEveryOption(t *testing.T) {
	for _, id := range []string{
		"strip_images", "optimize_images", "strip_styles", "prune_empty",
		"unwrap_links", "strip_notes", "fix_punctuation", "fix_spacing",
		"remove_watermarks", "translate", "summarize",
	} {
		_, err := bot.ParseToggle(id)
		assert.NoError(t, err, "toggle %s", id)
	}
}

func TestSetFormatAndEngine(t *testing.T) {
	h, st := newHandler(t)
	require.NoError(t, h.SetFormat(1, "mobi"))
	require.NoError(t, h.SetEngine(1, "deepl"))
	assert.Error(t, h.SetFormat(1, "docx"))
	assert.Error(t, h.SetEngine(1, "babelfish"))

	p, _ := st.GetProfile(1)
	assert.Equal(t, models.FormatMOBI, p.Options.Format)
	assert.Equal(t, models.EngineDeepL, p.Options.Engine)
}

func TestPendingModeIsExclusive(t *testing.T) {
	h, st := newHandler(t)

	require.NoError(t, h.Begin(1, models.PendingMode{Kind: models.PendingRules}))
	require.NoError(t, h.Begin(1, models.PendingMode{Kind: models.PendingCSS}))

	// The second Begin replaced the first: the text lands in CustomCSS,
	// not in the rule list.
	_, err := h.HandleText(1, "p { margin: 0 }")
	require.NoError(t, err)

	p, _ := st.GetProfile(1)
	assert.Equal(t, "p { margin: 0 }", p.CustomCSS)
	assert.Empty(t, p.SingleUseRules)
	assert.Equal(t, models.PendingNone, p.Pending.Kind)
}

func TestHandleTextWithoutPendingMode(t *testing.T) {
	h, _ := newHandler(t)
	_, err := h.HandleText(1, "hello?")
	assert.ErrorIs(t, err, bot.ErrNoPendingInput)
}

func TestHandleTextRules(t *testing.T) {
	h, st := newHandler(t)
	require.NoError(t, h.Begin(1, models.PendingMode{Kind: models.PendingRules}))

	reply, err := h.HandleText(1, "Capitulo => Capítulo\nfoo => bar")
	require.NoError(t, err)
	assert.Contains(t, reply, "2")

	p, _ := st.GetProfile(1)
	require.Len(t, p.SingleUseRules, 2)
	assert.Equal(t, models.Rule{Original: "Capitulo", Replacement: "Capítulo"}, p.SingleUseRules[0])
}

func TestHandleTextTitleThenAuthor(t *testing.T) {
	h, st := newHandler(t)

	require.NoError(t, h.Begin(1, models.PendingMode{Kind: models.PendingTitle}))
	_, err := h.HandleText(1, "Mi Libro")
	require.NoError(t, err)

	require.NoError(t, h.Begin(1, models.PendingMode{Kind: models.PendingAuthor}))
	_, err = h.HandleText(1, "Alguien")
	require.NoError(t, err)

	p, _ := st.GetProfile(1)
	require.NotNil(t, p.Metadata)
	assert.Equal(t, "Mi Libro", p.Metadata.Title)
	assert.Equal(t, "Alguien", p.Metadata.Author)
}

func TestDictionaryLifecycle(t *testing.T) {
	h, st := newHandler(t)

	require.NoError(t, h.Begin(1, models.PendingMode{Kind: models.PendingDictName}))
	reply, err := h.HandleText(1, "names")
	require.NoError(t, err)
	assert.Contains(t, reply, "names")

	// Creating a dictionary advances into rule-collection mode.
	_, err = h.HandleText(1, "Juan => John")
	require.NoError(t, err)

	require.NoError(t, h.SetDictActive(1, "names", true))
	p, _ := st.GetProfile(1)
	assert.Equal(t, []string{"names"}, p.ActiveDicts)
	assert.Equal(t, []models.Rule{{Original: "Juan", Replacement: "John"}}, p.ActiveRules())

	require.NoError(t, h.SetDictActive(1, "names", false))
	p, _ = st.GetProfile(1)
	assert.Empty(t, p.ActiveDicts)

	assert.Error(t, h.SetDictActive(1, "missing", true))

	require.NoError(t, h.SetDictActive(1, "names", true))
	require.NoError(t, h.DeleteDict(1, "names"))
	p, _ = st.GetProfile(1)
	assert.Empty(t, p.Dictionaries)
	assert.Empty(t, p.ActiveDicts)
}

func TestDeleteDictClearsPendingRuleMode(t *testing.T) {
	h, st := newHandler(t)

	require.NoError(t, h.Begin(1, models.PendingMode{Kind: models.PendingDictName}))
	_, err := h.HandleText(1, "names")
	require.NoError(t, err)

	// Deleting the dictionary while its rule input is still pending must
	// drop the mode; the next message is ordinary unexpected text.
	require.NoError(t, h.DeleteDict(1, "names"))

	require.NotPanics(t, func() {
		_, err = h.HandleText(1, "Juan => John")
	})
	assert.ErrorIs(t, err, bot.ErrNoPendingInput)

	p, _ := st.GetProfile(1)
	assert.Empty(t, p.Dictionaries, "deleted dictionary is not resurrected")
	assert.Equal(t, models.PendingNone, p.Pending.Kind)
}

func TestBeginRejectsUnknownDictionary(t *testing.T) {
	h, st := newHandler(t)

	err := h.Begin(1, models.PendingMode{Kind: models.PendingDictRules, DictName: "ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")

	p, _ := st.GetProfile(1)
	assert.Equal(t, models.PendingNone, p.Pending.Kind)
}

func TestResetAndSaveDefault(t *testing.T) {
	h, st := newHandler(t)

	_, err := h.Toggle(1, "translate")
	require.NoError(t, err)
	require.NoError(t, h.SaveDefault(1))

	_, err = h.Toggle(1, "strip_images")
	require.NoError(t, err)

	require.NoError(t, h.Reset(1))
	p, _ := st.GetProfile(1)
	assert.True(t, p.Options.Translate, "saved default restored")
	assert.False(t, p.Options.StripImages, "post-save change discarded")
}

func TestParseRulesMalformed(t *testing.T) {
	_, err := bot.ParseRules("this line has no separator")
	assert.Error(t, err)
	_, err = bot.ParseRules("   \n  ")
	assert.Error(t, err)
}
