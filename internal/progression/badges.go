package progression

import "codequest/internal/challenge/model"

// BadgeRule awards a badge once the completed-challenge count reaches
// Threshold. Rules are monotonic: a badge, once earned, is never
// revoked.
type BadgeRule struct {
	Name      string `yaml:"name"`
	Threshold int    `yaml:"threshold"`
}

// HardModeBadge is awarded on the first completed hard challenge,
// independent of the count thresholds.
const HardModeBadge = "Hard Mode"

// DefaultBadgeRules returns the built-in count-based badge ladder.
func DefaultBadgeRules() []BadgeRule {
	return []BadgeRule{
		{Name: "First Steps", Threshold: 1},
		{Name: "Getting Started", Threshold: 5},
		{Name: "Code Warrior", Threshold: 10},
		{Name: "Challenge Master", Threshold: 25},
	}
}

// earnedBadges returns the badges due after this completion that are
// not already held.
func earnedBadges(rules []BadgeRule, completedCount int, difficulty model.Difficulty, held map[string]bool) []string {
	var out []string
	for _, rule := range rules {
		if completedCount >= rule.Threshold && !held[rule.Name] {
			out = append(out, rule.Name)
		}
	}
	if difficulty == model.DifficultyHard && !held[HardModeBadge] {
		out = append(out, HardModeBadge)
	}
	return out
}

// levelFor computes the level for a total XP with the given step.
// Levels start at 1.
func levelFor(xp int64, step int64) int {
	if step <= 0 {
		step = 100
	}
	if xp < 0 {
		xp = 0
	}
	return int(xp/step) + 1
}
