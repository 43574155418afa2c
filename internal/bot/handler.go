package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vkarpal/libro-go/internal/models"
	"github.com/vkarpal/libro-go/internal/store"
)

// ErrNoPendingInput is returned when free text arrives while no
// awaiting-input mode is active.
var ErrNoPendingInput = errors.New("bot: no pending input expected")

// Handler applies command semantics to profiles. Every mutation goes
// through the store's read-modify-write cycle.
type Handler struct {
	store *store.Store
}

func NewHandler(st *store.Store) *Handler {
	return &Handler{store: st}
}

// Toggle flips one option and returns its new value.
func (h *Handler) Toggle(userID int64, id string) (bool, error) {
	t, err := ParseToggle(id)
	if err != nil {
		return false, err
	}
	var value bool
	_, err = h.store.UpdateProfile(userID, func(p *models.UserProfile) error {
		value = flip(&p.Options, t)
		return nil
	})
	return value, err
}

// SetFormat selects the output format.
func (h *Handler) SetFormat(userID int64, id string) error {
	f, err := ParseFormat(id)
	if err != nil {
		return err
	}
	_, err = h.store.UpdateProfile(userID, func(p *models.UserProfile) error {
		p.Options.Format = f
		return nil
	})
	return err
}

// SetEngine selects the translation engine.
func (h *Handler) SetEngine(userID int64, id string) error {
	e, err := ParseEngine(id)
	if err != nil {
		return err
	}
	_, err = h.store.UpdateProfile(userID, func(p *models.UserProfile) error {
		p.Options.Engine = e
		return nil
	})
	return err
}

// Begin switches the profile into an awaiting-input mode. Entering a mode
// replaces any previous one; two modes can never be active together. A
// rule-collection mode must name an existing dictionary.
func (h *Handler) Begin(userID int64, mode models.PendingMode) error {
	_, err := h.store.UpdateProfile(userID, func(p *models.UserProfile) error {
		if mode.Kind == models.PendingDictRules {
			if _, ok := p.Dictionaries[mode.DictName]; !ok {
				return fmt.Errorf("bot: unknown dictionary %q", mode.DictName)
			}
		}
		p.Pending = mode
		return nil
	})
	return err
}

// Cancel clears any awaiting-input mode.
func (h *Handler) Cancel(userID int64) error {
	return h.Begin(userID, models.PendingMode{})
}

// HandleText is the single dispatcher for free-text input: it switches on
// the profile's pending mode, applies the text, and clears (or advances)
// the mode.
func (h *Handler) HandleText(userID int64, text string) (string, error) {
	var reply string
	_, err := h.store.UpdateProfile(userID, func(p *models.UserProfile) error {
		switch p.Pending.Kind {
		case models.PendingRules:
			rules, err := ParseRules(text)
			if err != nil {
				return err
			}
			p.SingleUseRules = append(p.SingleUseRules, rules...)
			reply = fmt.Sprintf("Saved %d replacement rule(s) for your next book.", len(rules))

		case models.PendingTitle:
			if p.Metadata == nil {
				p.Metadata = &models.MetadataOverride{}
			}
			p.Metadata.Title = strings.TrimSpace(text)
			reply = "Title override saved for your next book."

		case models.PendingAuthor:
			if p.Metadata == nil {
				p.Metadata = &models.MetadataOverride{}
			}
			p.Metadata.Author = strings.TrimSpace(text)
			reply = "Author override saved for your next book."

		case models.PendingDictRules:
			name := p.Pending.DictName
			if _, ok := p.Dictionaries[name]; !ok {
				// The dictionary vanished while rule input was pending.
				// Drop the mode instead of resurrecting it.
				p.Pending = models.PendingMode{}
				return fmt.Errorf("bot: unknown dictionary %q", name)
			}
			rules, err := ParseRules(text)
			if err != nil {
				return err
			}
			p.Dictionaries[name] = append(p.Dictionaries[name], rules...)
			reply = fmt.Sprintf("Added %d rule(s) to dictionary %q.", len(rules), name)

		case models.PendingDictName:
			name := strings.TrimSpace(text)
			if name == "" {
				return errors.New("bot: dictionary name cannot be empty")
			}
			if p.Dictionaries == nil {
				p.Dictionaries = make(map[string][]models.Rule)
			}
			if _, exists := p.Dictionaries[name]; !exists {
				p.Dictionaries[name] = nil
			}
			// Stay in input mode, now collecting the new dictionary's rules.
			p.Pending = models.PendingMode{Kind: models.PendingDictRules, DictName: name}
			reply = fmt.Sprintf("Dictionary %q created. Send its rules, one per line.", name)
			return nil

		case models.PendingCSS:
			p.CustomCSS = text
			reply = "Custom style block saved for your next book."

		default:
			return ErrNoPendingInput
		}
		p.Pending = models.PendingMode{}
		return nil
	})
	return reply, err
}

// SetDictActive activates or deactivates a named dictionary.
func (h *Handler) SetDictActive(userID int64, name string, active bool) error {
	_, err := h.store.UpdateProfile(userID, func(p *models.UserProfile) error {
		if _, ok := p.Dictionaries[name]; !ok {
			return fmt.Errorf("bot: unknown dictionary %q", name)
		}
		idx := -1
		for i, n := range p.ActiveDicts {
			if n == name {
				idx = i
				break
			}
		}
		if active && idx < 0 {
			p.ActiveDicts = append(p.ActiveDicts, name)
		}
		if !active && idx >= 0 {
			p.ActiveDicts = append(p.ActiveDicts[:idx], p.ActiveDicts[idx+1:]...)
		}
		return nil
	})
	return err
}

// DeleteDict removes a dictionary and deactivates it.
func (h *Handler) DeleteDict(userID int64, name string) error {
	_, err := h.store.UpdateProfile(userID, func(p *models.UserProfile) error {
		if _, ok := p.Dictionaries[name]; !ok {
			return fmt.Errorf("bot: unknown dictionary %q", name)
		}
		delete(p.Dictionaries, name)
		for i, n := range p.ActiveDicts {
			if n == name {
				p.ActiveDicts = append(p.ActiveDicts[:i], p.ActiveDicts[i+1:]...)
				break
			}
		}
		// A pending rule-collection mode must not outlive its dictionary.
		if p.Pending.Kind == models.PendingDictRules && p.Pending.DictName == name {
			p.Pending = models.PendingMode{}
		}
		return nil
	})
	return err
}

// Reset restores the user's options from their saved default, falling back
// to the global default profile, then factory defaults.
func (h *Handler) Reset(userID int64) error {
	def, err := h.store.GetProfile(store.GlobalDefaultID)
	if err != nil {
		return err
	}
	_, err = h.store.UpdateProfile(userID, func(p *models.UserProfile) error {
		switch {
		case p.SavedDefault != nil:
			p.Options = *p.SavedDefault
		case def != nil:
			p.Options = def.Options
		default:
			p.Options = models.DefaultOptions()
		}
		p.ClearOneShot()
		p.Pending = models.PendingMode{}
		return nil
	})
	return err
}

// SaveDefault stores the current options as the user's personal default.
func (h *Handler) SaveDefault(userID int64) error {
	_, err := h.store.UpdateProfile(userID, func(p *models.UserProfile) error {
		opts := p.Options
		p.SavedDefault = &opts
		return nil
	})
	return err
}

// ParseRules parses replacement rules from text, one rule per line in the
// form "original => replacement". Rule text is literal: no pattern syntax
// is interpreted on either side.
func ParseRules(text string) ([]models.Rule, error) {
	var rules []models.Rule
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=>", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("bot: malformed rule %q (want \"original => replacement\")", line)
		}
		rules = append(rules, models.Rule{
			Original:    strings.TrimSpace(parts[0]),
			Replacement: strings.TrimSpace(parts[1]),
		})
	}
	if len(rules) == 0 {
		return nil, errors.New("bot: no rules found in input")
	}
	return rules, nil
}
