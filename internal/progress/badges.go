package progress

// Badge names an achievement.
type Badge string

const (
	BadgeBeginner   Badge = "beginner"
	BadgeApprentice Badge = "apprentice"
	BadgeMaster     Badge = "master"
	BadgeStreak3    Badge = "streak3"
	BadgeStreak7    Badge = "streak7"
)

var badgeRules = []struct {
	badge Badge
	earns func(Stats) bool
}{
	{BadgeBeginner, func(s Stats) bool { return s.CompletedLetters >= 1 }},
	{BadgeApprentice, func(s Stats) bool { return s.CompletedLetters >= 10 }},
	{BadgeMaster, func(s Stats) bool { return s.CompletedLetters >= LetterCount }},
	{BadgeStreak3, func(s Stats) bool { return s.StreakDays >= 3 }},
	{BadgeStreak7, func(s Stats) bool { return s.StreakDays >= 7 }},
}

// EarnedBadges lists every badge st qualifies for, in a fixed order.
func EarnedBadges(st Stats) []Badge {
	var out []Badge
	for _, r := range badgeRules {
		if r.earns(st) {
			out = append(out, r.badge)
		}
	}
	return out
}
