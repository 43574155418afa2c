// This file defines the core data structures (models) for the bot.
// A UserProfile holds everything we persist per chat identity: typed
// options, replacement dictionaries, one-shot state and the job queue.

package models

import "time"

// OutputFormat is the container format the finished book is delivered in.
type OutputFormat string

const (
	FormatEPUB OutputFormat = "epub"
	FormatMOBI OutputFormat = "mobi"
	FormatAZW3 OutputFormat = "azw3"
	FormatPDF  OutputFormat = "pdf"
)

// TranslationEngine identifies which translation backend a job uses.
// EngineExternal delegates the whole book to the conversion engine;
// the others translate text nodes per entry.
type TranslationEngine string

const (
	EngineGoogle   TranslationEngine = "google"
	EngineDeepL    TranslationEngine = "deepl"
	EngineExternal TranslationEngine = "external"
)

// Options holds every per-user processing switch. It replaces the string
// keyed option bag of older bots with a closed, typed set.
type Options struct {
	StripImages      bool `json:"strip_images"`
	OptimizeImages   bool `json:"optimize_images"`
	StripStyles      bool `json:"strip_styles"`
	PruneEmpty       bool `json:"prune_empty"`
	UnwrapLinks      bool `json:"unwrap_links"`
	StripNotes       bool `json:"strip_notes"`
	FixPunctuation   bool `json:"fix_punctuation"`
	FixSpacing       bool `json:"fix_spacing"`
	RemoveWatermarks bool `json:"remove_watermarks"`
	Translate        bool `json:"translate"`
	Summarize        bool `json:"summarize"`

	Engine TranslationEngine `json:"engine"`
	Format OutputFormat      `json:"format"`
}

// DefaultOptions is the factory configuration for a fresh profile.
func DefaultOptions() Options {
	return Options{
		RemoveWatermarks: true,
		FixSpacing:       true,
		Engine:           EngineGoogle,
		Format:           FormatEPUB,
	}
}

// Rule is a single literal substring replacement. Rules are applied in
// declared order, all occurrences, case-sensitive, and may compound.
type Rule struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
}

// MetadataOverride rewrites the book's title and/or author for one job.
// Empty fields are resolved from the book's existing metadata.
type MetadataOverride struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// PendingKind tags the profile's single awaiting-textual-input mode.
// At most one mode is active at a time by construction.
type PendingKind string

const (
	PendingNone      PendingKind = ""
	PendingRules     PendingKind = "rules"
	PendingTitle     PendingKind = "title"
	PendingAuthor    PendingKind = "author"
	PendingDictRules PendingKind = "dict_rules"
	PendingDictName  PendingKind = "dict_name"
	PendingCSS       PendingKind = "css"
)

// PendingMode is the tagged variant for the awaiting-input state machine.
// DictName is only meaningful for PendingDictRules.
type PendingMode struct {
	Kind     PendingKind `json:"kind"`
	DictName string      `json:"dict_name,omitempty"`
}

// UserProfile is everything persisted for one chat identity.
type UserProfile struct {
	UserID       int64             `json:"user_id"`
	Options      Options           `json:"options"`
	Dictionaries map[string][]Rule `json:"dictionaries,omitempty"`
	ActiveDicts  []string          `json:"active_dicts,omitempty"`

	// One-shot state: valid for exactly the next job, cleared by the
	// drain loop after that job completes (success or failure).
	SingleUseRules []Rule            `json:"single_use_rules,omitempty"`
	Metadata       *MetadataOverride `json:"metadata,omitempty"`
	CustomCSS      string            `json:"custom_css,omitempty"`

	Pending PendingMode `json:"pending"`
	Queue   []Job       `json:"queue,omitempty"`

	// SavedDefault is the user's saved option set; reset restores from it
	// when present, otherwise from the global default profile.
	SavedDefault *Options `json:"saved_default,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewProfile returns a profile with factory defaults for the given user.
func NewProfile(userID int64) *UserProfile {
	return &UserProfile{
		UserID:       userID,
		Options:      DefaultOptions(),
		Dictionaries: make(map[string][]Rule),
	}
}

// ActiveRules flattens the active dictionaries into one ordered rule list,
// in activation order.
func (p *UserProfile) ActiveRules() []Rule {
	var rules []Rule
	for _, name := range p.ActiveDicts {
		rules = append(rules, p.Dictionaries[name]...)
	}
	return rules
}

// Freeze snapshots the transformation-relevant state for a job being
// enqueued, so later profile edits cannot retroactively alter it.
func (p *UserProfile) Freeze(watermarks []string) Snapshot {
	snap := Snapshot{
		Options:        p.Options,
		SingleUseRules: append([]Rule(nil), p.SingleUseRules...),
		DictRules:      p.ActiveRules(),
		CustomCSS:      p.CustomCSS,
		Watermarks:     append([]string(nil), watermarks...),
	}
	if p.Metadata != nil {
		md := *p.Metadata
		snap.Metadata = &md
	}
	return snap
}

// ClearOneShot drops all single-job state. Called by the queue drainer
// after every job, regardless of outcome.
func (p *UserProfile) ClearOneShot() {
	p.SingleUseRules = nil
	p.Metadata = nil
	p.CustomCSS = ""
}
