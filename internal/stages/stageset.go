package stages

import (
	"slices"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Entity types.
const (
	TypeLead        = "lead"
	TypeContact     = "contact"
	TypeOpportunity = "opportunity"
	TypeClient      = "client"
)

// StageSet is the ordered lifecycle of one entity type.
type StageSet struct {
	EntityType string
	Stages     []string
}

// Index returns the position of stage in the set, or -1.
func (s StageSet) Index(stage string) int {
	return slices.Index(s.Stages, stage)
}

// Contains reports whether stage belongs to the set.
func (s StageSet) Contains(stage string) bool {
	return s.Index(stage) >= 0
}

// First returns the initial stage.
func (s StageSet) First() string {
	if len(s.Stages) == 0 {
		return ""
	}
	return s.Stages[0]
}

// IsForward reports whether moving from current to proposed advances the
// lifecycle.
func (s StageSet) IsForward(current, proposed string) bool {
	return s.Index(proposed) > s.Index(current)
}

var registry = map[string]StageSet{
	TypeLead: {
		EntityType: TypeLead,
		Stages:     []string{"nouveau", "en_cours", "qualifie", "converti"},
	},
	TypeContact: {
		EntityType: TypeContact,
		Stages:     []string{"nouveau", "en_cours", "qualifie", "client"},
	},
	TypeOpportunity: {
		EntityType: TypeOpportunity,
		Stages:     []string{"nouveau", "en_cours", "qualifie", "proposition", "negociation", "signe", "acompte_recu", "gagne"},
	},
	TypeClient: {
		EntityType: TypeClient,
		Stages:     []string{"nouveau", "en_cours", "signe", "acompte_recu", "en_production", "livre", "solde"},
	},
}

// Lookup returns the StageSet of entityType.
func Lookup(entityType string) (StageSet, bool) {
	set, ok := registry[strings.TrimSpace(entityType)]
	return set, ok
}

// EntityTypes lists the known entity types in stable order.
func EntityTypes() []string {
	out := make([]string, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Label renders a stage name for humans, e.g. "acompte_recu" -> "Acompte Recu".
func Label(stage string) string {
	if stage == "" {
		return ""
	}
	return cases.Title(language.French).String(strings.ReplaceAll(stage, "_", " "))
}
