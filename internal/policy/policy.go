// Package policy decides, per logical route, whether a response body
// must be wrapped in an encryption envelope, and enforces the decision.
package policy

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Strategy selects the key source for a route's response encryption.
// It is a closed set; the application site switches exhaustively so
// that adding a strategy is a compile-time-checked change.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyJWT
	StrategyServiceKey
)

func (s Strategy) String() string {
	switch s {
	case StrategyNone:
		return "none"
	case StrategyJWT:
		return "jwt"
	case StrategyServiceKey:
		return "service-key"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "none", "":
		return StrategyNone, nil
	case "jwt":
		return StrategyJWT, nil
	case "service-key":
		return StrategyServiceKey, nil
	default:
		return 0, fmt.Errorf("policy: unknown strategy %q", name)
	}
}

func (s *Strategy) UnmarshalYAML(node *yaml.Node) error {
	var name string
	if err := node.Decode(&name); err != nil {
		return err
	}
	parsed, err := ParseStrategy(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Strategy) MarshalYAML() (any, error) { return s.String(), nil }

// Rule binds a route pattern to a strategy. Patterns are exact paths or
// prefixes ending in "/". Mandatory routes fail closed: if encryption
// cannot be applied the response is replaced, never passed through.
type Rule struct {
	Pattern   string   `yaml:"pattern"`
	Strategy  Strategy `yaml:"strategy"`
	Mandatory bool     `yaml:"mandatory"`
}

// Policies is the immutable route-to-rule table, built once at startup.
// A catch-all default always exists.
type Policies struct {
	rules []Rule
	def   Rule
}

// NewPolicies builds the table. If no rule has pattern "/", an
// unencrypted catch-all is installed as the default.
func NewPolicies(rules []Rule) *Policies {
	p := &Policies{def: Rule{Pattern: "/", Strategy: StrategyNone}}
	for _, r := range rules {
		if r.Pattern == "/" {
			p.def = r
			continue
		}
		p.rules = append(p.rules, r)
	}
	return p
}

// Match returns the most specific rule for a path: an exact match wins,
// then the longest prefix pattern, then the default.
func (p *Policies) Match(path string) Rule {
	best := p.def
	bestLen := -1
	for _, r := range p.rules {
		if r.Pattern == path {
			return r
		}
		if strings.HasSuffix(r.Pattern, "/") && strings.HasPrefix(path, r.Pattern) && len(r.Pattern) > bestLen {
			best = r
			bestLen = len(r.Pattern)
		}
	}
	return best
}

// Rules returns a copy of the configured rules plus the default.
func (p *Policies) Rules() []Rule {
	out := append([]Rule(nil), p.rules...)
	return append(out, p.def)
}
