// Package gate implements the command authorization gate: an ordered,
// anchored-left regex allow-list loaded once at startup (spec §4.2).
package gate

import (
	"fmt"
	"os"
	"regexp"

	"github.com/ale/aos-ssh-gateway/pkg/gwerr"
	"gopkg.in/yaml.v3"
)

// config is the YAML shape read from the allow-list file: a single
// top-level key holding an ordered list of regex strings.
type config struct {
	AllowedAOSCommands []string `yaml:"allowed_aos_commands"`
}

// Gate matches a requested command against an ordered set of anchored
// regular expressions. A command is allowed iff at least one pattern
// matches it from the start; right side is free. An empty Gate (no
// patterns) denies everything.
type Gate struct {
	patterns []*regexp.Regexp
	raw      []string
}

// Load reads a YAML allow-list file and compiles every pattern. Patterns
// are anchored on the left (`^(?:pattern)`) so matching is always
// from-the-start regardless of what the author wrote; the right side is
// left free to match per spec §4.2. An invalid regex fails startup with a
// ConfigError, per spec §4.2 and §7.
func Load(path string) (*Gate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, gwerr.Config(fmt.Sprintf("reading allow-list file %s: %v", path, err))
	}

	var cfg config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, gwerr.Config(fmt.Sprintf("parsing allow-list file %s: %v", path, err))
	}

	return compile(cfg.AllowedAOSCommands)
}

func compile(patterns []string) (*Gate, error) {
	g := &Gate{raw: patterns}
	for _, p := range patterns {
		re, err := regexp.Compile("^(?:" + p + ")")
		if err != nil {
			return nil, gwerr.Config(fmt.Sprintf("invalid allow-list pattern %q: %v", p, err))
		}
		g.patterns = append(g.patterns, re)
	}
	return g, nil
}

// Allow reports whether command is matched by at least one allow-list
// pattern from its start. An empty allow-list always returns false.
func (g *Gate) Allow(command string) bool {
	for _, re := range g.patterns {
		if re.MatchString(command) {
			return true
		}
	}
	return false
}

// Patterns returns the raw (uncompiled) pattern strings, for diagnostics.
func (g *Gate) Patterns() []string {
	return g.raw
}
