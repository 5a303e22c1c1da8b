package meow

import (
	"fmt"
	"sort"
	"sync"
)

// RetroactiveHook is called whenever a rule whose pattern's event mask
// includes one of the *_retroactive event types is added to the registry
// while the registry is already live — the caller (internal/fsmonitor)
// uses it to re-scan existing files against that single rule without
// waiting for the next filesystem event, mirroring
// original_source/core/base_monitor.py's _apply_retroactive_rule, which is
// both looped over at monitor start and invoked standalone on a live
// pattern addition.
type RetroactiveHook func(rule Rule)

// Registry holds the live set of patterns, recipes, and the rules derived
// from pairing them by name, under a single lock — grounded on the
// teacher's internal/monitor package (mutex-guarded map of tracked state,
// recomputed rather than incrementally patched) and on
// original_source/core/base_monitor.py's BaseMonitor, which recomputes
// its rule set from the full pattern/recipe dictionaries after every
// mutation rather than patching incrementally.
type Registry struct {
	mu       sync.Mutex
	patterns map[string]Pattern
	recipes  map[string]Recipe
	rules    map[string]Rule

	onRetroactive RetroactiveHook
}

// NewRegistry returns an empty registry. SetRetroactiveHook should be
// called once, before any AddPattern call, if retroactive re-scan on live
// pattern addition is wanted.
func NewRegistry() *Registry {
	return &Registry{
		patterns: make(map[string]Pattern),
		recipes:  make(map[string]Recipe),
		rules:    make(map[string]Rule),
	}
}

// SetRetroactiveHook installs the callback invoked when a newly added (or
// updated) pattern produces a rule whose event mask contains a
// *_retroactive entry.
func (reg *Registry) SetRetroactiveHook(hook RetroactiveHook) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.onRetroactive = hook
}

// AddPattern validates and inserts a new pattern, then recomputes rules.
// Adding a pattern under a name that already exists is an error — use
// UpdatePattern to replace one.
func (reg *Registry) AddPattern(p Pattern) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("AddPattern: %w", err)
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, exists := reg.patterns[p.Name()]; exists {
		return fmt.Errorf("AddPattern: pattern %q already exists", p.Name())
	}
	reg.patterns[p.Name()] = p.Clone()
	reg.recomputeRulesLocked()
	reg.fireRetroactiveLocked(p.Name())
	return nil
}

// UpdatePattern replaces an existing pattern by name. Updating an unknown
// name is an error and leaves the registry unchanged.
func (reg *Registry) UpdatePattern(p Pattern) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("UpdatePattern: %w", err)
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, exists := reg.patterns[p.Name()]; !exists {
		return fmt.Errorf("UpdatePattern: pattern %q does not exist", p.Name())
	}
	reg.patterns[p.Name()] = p.Clone()
	reg.recomputeRulesLocked()
	reg.fireRetroactiveLocked(p.Name())
	return nil
}

// RemovePattern deletes a pattern by name and recomputes rules. Removing
// an unknown name is a no-op.
func (reg *Registry) RemovePattern(name string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.patterns, name)
	reg.recomputeRulesLocked()
}

// GetPatterns returns defensive copies of every registered pattern, keyed
// by name.
func (reg *Registry) GetPatterns() map[string]Pattern {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make(map[string]Pattern, len(reg.patterns))
	for k, v := range reg.patterns {
		out[k] = v.Clone()
	}
	return out
}

// AddRecipe validates and inserts a new recipe, then recomputes rules.
func (reg *Registry) AddRecipe(r Recipe) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("AddRecipe: %w", err)
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, exists := reg.recipes[r.Name()]; exists {
		return fmt.Errorf("AddRecipe: recipe %q already exists", r.Name())
	}
	reg.recipes[r.Name()] = r.Clone()
	reg.recomputeRulesLocked()
	return nil
}

// UpdateRecipe replaces an existing recipe by name. Updating an unknown
// name is an error and leaves the registry unchanged.
func (reg *Registry) UpdateRecipe(r Recipe) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("UpdateRecipe: %w", err)
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, exists := reg.recipes[r.Name()]; !exists {
		return fmt.Errorf("UpdateRecipe: recipe %q does not exist", r.Name())
	}
	reg.recipes[r.Name()] = r.Clone()
	reg.recomputeRulesLocked()
	return nil
}

// RemoveRecipe deletes a recipe by name and recomputes rules. Removing an
// unknown name is a no-op.
func (reg *Registry) RemoveRecipe(name string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.recipes, name)
	reg.recomputeRulesLocked()
}

// GetRecipes returns defensive copies of every registered recipe, keyed
// by name.
func (reg *Registry) GetRecipes() map[string]Recipe {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make(map[string]Recipe, len(reg.recipes))
	for k, v := range reg.recipes {
		out[k] = v.Clone()
	}
	return out
}

// GetRules returns defensive copies of every currently derivable rule,
// keyed by rule name.
func (reg *Registry) GetRules() map[string]Rule {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make(map[string]Rule, len(reg.rules))
	for k, v := range reg.rules {
		out[k] = Rule{Name: v.Name, Pattern: v.Pattern.Clone(), Recipe: v.Recipe.Clone()}
	}
	return out
}

// recomputeRulesLocked rebuilds the rule set from scratch: every pattern
// whose recipe_name resolves to a known recipe produces one rule. A
// pattern with no matching recipe simply produces no rule — this is not
// an error, per original_source/functionality/meow.py's create_rules,
// which skips patterns referencing an absent recipe rather than raising.
// Rule identity is keyed by pattern name, so re-running this after a
// recipe's body changes keeps the same rule name for the same pattern
// instead of issuing a fresh id on every recompute.
func (reg *Registry) recomputeRulesLocked() {
	next := make(map[string]Rule, len(reg.patterns))
	for patternName, p := range reg.patterns {
		recipe, ok := reg.recipes[p.RecipeName()]
		if !ok {
			continue
		}
		if existing, ok := reg.rules[patternName]; ok {
			next[patternName] = Rule{Name: existing.Name, Pattern: p.Clone(), Recipe: recipe.Clone()}
			continue
		}
		rule, err := newRule(p, recipe)
		if err != nil {
			continue
		}
		rule.Name = patternName
		next[patternName] = rule
	}
	reg.rules = next
}

// fireRetroactiveLocked invokes the retroactive hook, if one is set and
// the named pattern now has a rule whose event mask includes a
// *_retroactive event type.
func (reg *Registry) fireRetroactiveLocked(patternName string) {
	if reg.onRetroactive == nil {
		return
	}
	rule, ok := reg.rules[patternName]
	if !ok {
		return
	}
	fp, ok := rule.Pattern.(*FilePattern)
	if !ok {
		return
	}
	for _, t := range fp.EventMask {
		if t == EventFileRetroactive || t == EventDirRetroactive {
			reg.onRetroactive(rule)
			return
		}
	}
}

// RuleNames returns every current rule name in sorted order, useful for
// deterministic logging and tests.
func (reg *Registry) RuleNames() []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	names := make([]string, 0, len(reg.rules))
	for name := range reg.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
