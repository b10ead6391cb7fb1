package filter

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"sirenscope/internal/model"
)

// Profile is the keyword-scoring configuration for sector classification.
// The lists and threshold are business data, not code: they ship as a YAML
// file and the built-in defaults target hospitality-sector staffing agencies.
type Profile struct {
	// Keywords accumulate one point when found in the company name or signage.
	Keywords []string `yaml:"keywords"`
	// Roles are trade-role terms that count double in the name or signage.
	Roles []string `yaml:"roles"`
	// Exclusions veto the record when found in any scored text field.
	Exclusions []string `yaml:"exclusions"`
	// Brands are known specialists: a match forces the score to the threshold.
	Brands []string `yaml:"brands"`
	// Threshold is the minimum score to keep a record.
	Threshold int `yaml:"threshold"`
}

// DefaultProfile returns the built-in hospitality profile.
func DefaultProfile() Profile {
	return Profile{
		Keywords: []string{
			"hôtellerie", "hotellerie", "hôtel", "hotel",
			"restauration", "restaurant", "traiteur",
			"housekeeping", "room service",
			"réception", "reception", "conciergerie",
			"banquet", "événementiel", "evenementiel",
			"bar", "barman", "barmaid", "serveur", "serveuse",
			"cuisine", "commis", "chef de partie",
			"femme de chambre", "valet de chambre", "gouvernante",
			"hospitality", "CHR", "HCR",
		},
		Roles: []string{
			"réception", "reception", "réceptionniste", "receptionniste",
			"housekeeping", "gouvernante", "femme de chambre", "valet de chambre",
			"serveur", "serveuse", "chef de rang", "chef de partie", "commis",
			"barman", "barmaid", "banquet", "conciergerie",
		},
		Exclusions: []string{
			"btp", "bâtiment", "batiment", "industrie", "industriel",
			"logistique", "transport", "sécurité", "securite",
			"nettoyage industriel", "santé", "medical", "médical",
		},
		Brands:    []string{"adaptel"},
		Threshold: 2,
	}
}

// LoadProfile reads a YAML profile. Omitted fields fall back to the defaults,
// so a file can override just the brands or just the threshold.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, eris.Wrapf(err, "read keyword profile %s", path)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, eris.Wrapf(err, "parse keyword profile %s", path)
	}
	if p.Threshold <= 0 {
		p.Threshold = DefaultProfile().Threshold
	}
	return p, nil
}

// Score accumulates the sector-classification score of one record: the
// declared purpose counts double, trade roles in name or signage count
// double, generic keywords in name or signage count once, and a brand match
// guarantees the threshold.
func (p Profile) Score(c *model.Company) int {
	name := c.Name
	signage := strings.Join(c.Signage, " | ")
	sites := strings.Join(c.Websites, " ")

	score := 0
	if containsAny(c.Purpose, p.Keywords) {
		score += 2
	}
	if containsAny(name, p.Roles) || containsAny(signage, p.Roles) {
		score += 2
	}
	if containsAny(name, p.Keywords) || containsAny(signage, p.Keywords) {
		score++
	}
	if containsAny(name, p.Brands) || containsAny(signage, p.Brands) || containsAny(sites, p.Brands) {
		if score < p.Threshold {
			score = p.Threshold
		}
	}
	return score
}

// Keep reports whether the record meets the threshold and trips none of the
// exclusion keywords.
func (p Profile) Keep(c *model.Company) bool {
	if p.Score(c) < p.Threshold {
		return false
	}
	for _, text := range []string{c.Name, strings.Join(c.Signage, " | "), c.Purpose} {
		if !containsNone(text, p.Exclusions) {
			return false
		}
	}
	return true
}
