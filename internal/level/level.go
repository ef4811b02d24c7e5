package level

// XP aggregates the activity stream into experience points: one point per
// ledger record plus the difficulty-weighted points of completed challenges.
func XP(activityCount, completedPoints int64) int64 {
	return activityCount + completedPoints
}

const (
	// xpPerLevel is the flat level bucket size. Tunable, but the level
	// function must stay monotone non-decreasing in XP.
	xpPerLevel = 20

	currencyPerLevel = 50
	milestoneEvery   = 5
	milestoneBonus   = 200
)

// Level derives the level from XP; never below 1.
func Level(xp int64) int {
	if xp < 0 {
		return 1
	}
	return int(xp/xpPerLevel) + 1
}

// rewardFor sums the currency for every level crossed in (from, to]: a fixed
// amount per level plus a larger bonus on every milestone level.
func rewardFor(from, to int) int64 {
	var total int64
	for lvl := from + 1; lvl <= to; lvl++ {
		total += currencyPerLevel
		if lvl%milestoneEvery == 0 {
			total += milestoneBonus
		}
	}
	return total
}
