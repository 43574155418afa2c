// Package bot implements the transport-agnostic command core: the typed
// toggle set, the single pending-interaction mode, and the profile
// operations the chat layer maps commands onto.
package bot

import (
	"fmt"

	"github.com/vkarpal/libro-go/internal/models"
)

// Toggle is the closed enumeration of flippable options. Inbound toggle
// identifiers go through ParseToggle, which fails loudly on unknown ids
// instead of silently ignoring them.
type Toggle string

const (
	ToggleStripImages      Toggle = "strip_images"
	ToggleOptimizeImages   Toggle = "optimize_images"
	ToggleStripStyles      Toggle = "strip_styles"
	TogglePruneEmpty       Toggle = "prune_empty"
	ToggleUnwrapLinks      Toggle = "unwrap_links"
	ToggleStripNotes       Toggle = "strip_notes"
	ToggleFixPunctuation   Toggle = "fix_punctuation"
	ToggleFixSpacing       Toggle = "fix_spacing"
	ToggleRemoveWatermarks Toggle = "remove_watermarks"
	ToggleTranslate        Toggle = "translate"
	ToggleSummarize        Toggle = "summarize"
)

var toggles = map[string]Toggle{
	string(ToggleStripImages):      ToggleStripImages,
	string(ToggleOptimizeImages):   ToggleOptimizeImages,
	string(ToggleStripStyles):      ToggleStripStyles,
	string(TogglePruneEmpty):       TogglePruneEmpty,
	string(ToggleUnwrapLinks):      ToggleUnwrapLinks,
	string(ToggleStripNotes):       ToggleStripNotes,
	string(ToggleFixPunctuation):   ToggleFixPunctuation,
	string(ToggleFixSpacing):       ToggleFixSpacing,
	string(ToggleRemoveWatermarks): ToggleRemoveWatermarks,
	string(ToggleTranslate):        ToggleTranslate,
	string(ToggleSummarize):        ToggleSummarize,
}

// ParseToggle maps an inbound identifier to its Toggle.
func ParseToggle(id string) (Toggle, error) {
	t, ok := toggles[id]
	if !ok {
		return "", fmt.Errorf("bot: unknown toggle %q", id)
	}
	return t, nil
}

// flip flips the option a toggle addresses and returns the new value.
func flip(o *models.Options, t Toggle) bool {
	var field *bool
	switch t {
	case ToggleStripImages:
		field = &o.StripImages
	case ToggleOptimizeImages:
		field = &o.OptimizeImages
	case ToggleStripStyles:
		field = &o.StripStyles
	case TogglePruneEmpty:
		field = &o.PruneEmpty
	case ToggleUnwrapLinks:
		field = &o.UnwrapLinks
	case ToggleStripNotes:
		field = &o.StripNotes
	case ToggleFixPunctuation:
		field = &o.FixPunctuation
	case ToggleFixSpacing:
		field = &o.FixSpacing
	case ToggleRemoveWatermarks:
		field = &o.RemoveWatermarks
	case ToggleTranslate:
		field = &o.Translate
	case ToggleSummarize:
		field = &o.Summarize
	}
	*field = !*field
	return *field
}

var formats = map[string]models.OutputFormat{
	string(models.FormatEPUB): models.FormatEPUB,
	string(models.FormatMOBI): models.FormatMOBI,
	string(models.FormatAZW3): models.FormatAZW3,
	string(models.FormatPDF):  models.FormatPDF,
}

// ParseFormat maps an inbound output-format identifier.
func ParseFormat(id string) (models.OutputFormat, error) {
	f, ok := formats[id]
	if !ok {
		return "", fmt.Errorf("bot: unknown output format %q", id)
	}
	return f, nil
}

var engines = map[string]models.TranslationEngine{
	string(models.EngineGoogle):   models.EngineGoogle,
	string(models.EngineDeepL):    models.EngineDeepL,
	string(models.EngineExternal): models.EngineExternal,
}

// ParseEngine maps an inbound translation-engine identifier.
func ParseEngine(id string) (models.TranslationEngine, error) {
	e, ok := engines[id]
	if !ok {
		return "", fmt.Errorf("bot: unknown translation engine %q", id)
	}
	return e, nil
}
