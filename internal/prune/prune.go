// Package prune decides which directories a traversal descends into.
package prune

import (
	"slices"
	"strings"
)

// Reason explains why a directory was pruned.
type Reason string

// Pruning reasons.
const (
	ReasonNone     Reason = ""
	ReasonDenyList Reason = "deny-list"
	ReasonHidden   Reason = "hidden-system"
	ReasonDepth    Reason = "depth"
)

// DefaultDenyList contains system, VCS and build-artifact directory names
// that are never worth descending into.
//
//nolint:gochecknoglobals // Config constant
var DefaultDenyList = []string{
	"$RECYCLE.BIN",
	"System Volume Information",
	"Windows",
	"Windows.old",
	"Program Files",
	"Program Files (x86)",
	"ProgramData",
	"AppData",
	".git",
	".svn",
	".hg",
	"node_modules",
	"__pycache__",
	".vscode",
	".idea",
	"venv",
	".env",
}

// Attributes are the OS-level flags of a directory that matter for pruning.
// Only Windows reports them; elsewhere they stay zero.
type Attributes struct {
	// Hidden is set for hidden directories.
	Hidden bool
	// System is set for directories the OS flags as system-owned.
	System bool
}

// Policy is an immutable pruning configuration.
type Policy struct {
	// Enabled turns on deny-list and hidden-system checks. The depth bound
	// applies regardless.
	Enabled bool
	// SkipHidden also prunes dot-prefixed directories.
	SkipHidden bool
	// MaxDepth is the deepest directory level descended into (0 = unlimited).
	MaxDepth int

	deny map[string]struct{}
}

// New creates a policy from a deny-list. Names are matched case-insensitively.
func New(denyList []string, enabled, skipHidden bool, maxDepth int) Policy {
	deny := make(map[string]struct{}, len(denyList))
	for _, name := range denyList {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		deny[strings.ToLower(name)] = struct{}{}
	}

	return Policy{
		Enabled:    enabled,
		SkipHidden: skipHidden,
		MaxDepth:   maxDepth,
		deny:       deny,
	}
}

// Default returns the policy used when nothing is configured.
func Default(maxDepth int) Policy {
	return New(DefaultDenyList, true, false, maxDepth)
}

// Denied reports whether a directory name is on the deny-list.
func (p Policy) Denied(name string) bool {
	_, ok := p.deny[strings.ToLower(name)]

	return ok
}

// DenyList returns the lower-cased deny-list, sorted.
func (p Policy) DenyList() []string {
	names := make([]string, 0, len(p.deny))
	for name := range p.deny {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Dotted reports whether name is a dot-prefixed (Unix hidden) name.
func Dotted(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, ".") && name != ".."
}

// ShouldSkip decides whether the directory at the given depth is pruned.
// The root is depth 0 and is never pruned by name.
func (p Policy) ShouldSkip(name string, attrs Attributes, depth int) (bool, Reason) {
	if p.MaxDepth > 0 && depth > p.MaxDepth {
		return true, ReasonDepth
	}

	if !p.Enabled || depth == 0 {
		return false, ReasonNone
	}

	if p.Denied(name) {
		return true, ReasonDenyList
	}

	if attrs.Hidden && attrs.System {
		return true, ReasonHidden
	}

	if p.SkipHidden && Dotted(name) {
		return true, ReasonHidden
	}

	return false, ReasonNone
}
