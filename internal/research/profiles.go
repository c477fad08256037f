package research

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Depth names for the built-in profiles.
const (
	DepthBrief  = "brief"
	DepthMedium = "medium"
	DepthDeep   = "deep"
)

// DefaultDepth is used when a run does not pick a depth explicitly.
const DefaultDepth = DepthMedium

//go:embed profiles.yaml
var profilesYAML []byte

// Profile controls how much material a run gathers per depth setting.
type Profile struct {
	// QueryVariants is how many query phrasings the plan carries (1-3).
	QueryVariants int `yaml:"queryVariants"`
	// KeyPointsPerSource is how many key points extraction distills per
	// document.
	KeyPointsPerSource int `yaml:"keyPointsPerSource"`
	// QuotesPerSource is how many supporting quotes extraction captures per
	// document.
	QuotesPerSource int `yaml:"quotesPerSource"`
}

// Profiles returns the built-in depth profiles keyed by depth name.
func Profiles() (map[string]Profile, error) {
	var profiles map[string]Profile
	if err := yaml.Unmarshal(profilesYAML, &profiles); err != nil {
		return nil, fmt.Errorf("research: parse embedded profiles: %w", err)
	}
	return profiles, nil
}

// ProfileFor resolves a depth name to its profile. Unknown depths are an
// error rather than a silent fallback so a typo in configuration surfaces
// before any work happens.
func ProfileFor(depth string) (Profile, error) {
	profiles, err := Profiles()
	if err != nil {
		return Profile{}, err
	}
	p, ok := profiles[depth]
	if !ok {
		return Profile{}, fmt.Errorf("research: unknown depth %q (want %s, %s or %s)",
			depth, DepthBrief, DepthMedium, DepthDeep)
	}
	return p, nil
}
