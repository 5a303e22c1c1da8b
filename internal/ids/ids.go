// Package ids generates identifiers for the entities the engine juggles:
// patterns, recipes, rules, handlers, monitors, and jobs.
package ids

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewPatternID generates an identifier for a pattern.
func NewPatternID() string {
	return prefixedID("pattern")
}

// NewRecipeID generates an identifier for a recipe.
func NewRecipeID() string {
	return prefixedID("recipe")
}

// NewRuleID generates an identifier for a rule.
func NewRuleID() string {
	return prefixedID("rule")
}

// NewHandlerID generates an identifier for a handler instance.
func NewHandlerID() string {
	return prefixedID("handler")
}

// NewMonitorID generates an identifier for a monitor instance.
func NewMonitorID() string {
	return prefixedID("monitor")
}

// NewJobID generates an identifier for a job. Jobs key a filesystem
// directory, so a full UUID is used rather than the short prefixed tags
// used for the other, operator-facing, entity names.
func NewJobID() string {
	return uuid.NewString()
}

// prefixedID returns "<prefix>-<12 hex chars>" using crypto/rand, falling
// back to a timestamp-derived suffix if the system RNG is unavailable.
func prefixedID(prefix string) string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%s-%x", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%s", prefix, hex.EncodeToString(b))
}
