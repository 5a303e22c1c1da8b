package meow

import (
	"fmt"

	"github.com/ppiankov/meow/internal/ids"
)

// Rule is the live pairing of one pattern and one recipe, with an
// auto-generated name. A rule exists only if the pattern's recipe_name
// resolves to a known recipe.
type Rule struct {
	Name    string
	Pattern Pattern
	Recipe  Recipe
}

// ruleConstructorKey pairs a pattern variant with a recipe variant.
type ruleConstructorKey struct {
	pattern PatternKind
	recipe  RecipeKind
}

// ruleConstructors is populated at init() rather than discovered via
// reflection (spec.md §9's "Runtime type dispatch" design note): every
// (pattern variant, recipe variant) combination this engine supports is
// registered once, up front, and rule construction is a map lookup.
var ruleConstructors = map[ruleConstructorKey]func(Pattern, Recipe) Rule{}

func registerRuleConstructor(pk PatternKind, rk RecipeKind) {
	ruleConstructors[ruleConstructorKey{pk, rk}] = func(p Pattern, r Recipe) Rule {
		return Rule{
			Name:    ids.NewRuleID(),
			Pattern: p.Clone(),
			Recipe:  r.Clone(),
		}
	}
}

func init() {
	for _, pk := range []PatternKind{PatternKindFile, PatternKindSocket} {
		for _, rk := range []RecipeKind{RecipeKindShell, RecipeKindNotebook} {
			registerRuleConstructor(pk, rk)
		}
	}
}

// newRule constructs a Rule from a matching pattern/recipe pair, via the
// constructor registry. An unrecognised (pattern, recipe) variant
// combination is a programming error in this module, not a user input
// error — all four combinations this engine ships are registered in init().
func newRule(p Pattern, r Recipe) (Rule, error) {
	ctor, ok := ruleConstructors[ruleConstructorKey{p.Kind(), r.Kind()}]
	if !ok {
		return Rule{}, fmt.Errorf("no rule constructor registered for pattern kind %q with recipe kind %q", p.Kind(), r.Kind())
	}
	return ctor(p, r), nil
}
