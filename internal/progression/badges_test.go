package progression

import (
	"reflect"
	"testing"

	"codequest/internal/challenge/model"
)

func TestLevelFor(t *testing.T) {
	cases := []struct {
		xp       int64
		step     int64
		expected int
	}{
		{0, 100, 1},
		{99, 100, 1},
		{100, 100, 2},
		{250, 100, 3},
		{1000, 100, 11},
		{50, 0, 1},   // zero step falls back to 100
		{-10, 100, 1},
	}
	for _, tc := range cases {
		if got := levelFor(tc.xp, tc.step); got != tc.expected {
			t.Errorf("levelFor(%d, %d) = %d, expected %d", tc.xp, tc.step, got, tc.expected)
		}
	}
}

func TestEarnedBadgesThresholds(t *testing.T) {
	rules := DefaultBadgeRules()

	got := earnedBadges(rules, 1, model.DifficultyEasy, nil)
	if !reflect.DeepEqual(got, []string{"First Steps"}) {
		t.Fatalf("first completion: got %v", got)
	}

	got = earnedBadges(rules, 5, model.DifficultyEasy, map[string]bool{"First Steps": true})
	if !reflect.DeepEqual(got, []string{"Getting Started"}) {
		t.Fatalf("fifth completion: got %v", got)
	}

	// A user who skipped ahead collects every threshold due at once.
	got = earnedBadges(rules, 12, model.DifficultyEasy, nil)
	if !reflect.DeepEqual(got, []string{"First Steps", "Getting Started", "Code Warrior"}) {
		t.Fatalf("catch-up: got %v", got)
	}
}

func TestEarnedBadgesHardMode(t *testing.T) {
	rules := DefaultBadgeRules()

	got := earnedBadges(rules, 1, model.DifficultyHard, nil)
	if !reflect.DeepEqual(got, []string{"First Steps", HardModeBadge}) {
		t.Fatalf("hard first completion: got %v", got)
	}

	held := map[string]bool{"First Steps": true, HardModeBadge: true}
	got = earnedBadges(rules, 2, model.DifficultyHard, held)
	if got != nil {
		t.Fatalf("held badges must not repeat: got %v", got)
	}
}

func TestEarnedBadgesNeverRevokes(t *testing.T) {
	held := map[string]bool{"First Steps": true}
	got := earnedBadges(DefaultBadgeRules(), 0, model.DifficultyEasy, held)
	if got != nil {
		t.Fatalf("a lower count must award nothing, got %v", got)
	}
}
