package progression

import "hifz-quiz-service/internal/domain"

var fallbackLevel = domain.LevelInfo{
	Level:           1,
	Title:           "Beginner",
	ProgressPercent: 0,
	CurrentLevelXP:  0,
	NextLevelXP:     100,
}

// ResolveLevel maps an XP value to its level, title and progress towards the
// next level. The lookup is a floor: the highest level whose threshold is met.
func (e *Engine) ResolveLevel(xp int) domain.LevelInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return resolve(e.initialized, e.levels, xp)
}

func resolve(initialized bool, levels []domain.Level, xp int) domain.LevelInfo {
	if !initialized || len(levels) == 0 {
		return fallbackLevel
	}

	current := levels[0]
	for i := len(levels) - 1; i >= 0; i-- {
		if xp >= levels[i].XPRequired {
			current = levels[i]
			break
		}
	}

	var next *domain.Level
	for i := range levels {
		if levels[i].Level == current.Level+1 {
			next = &levels[i]
			break
		}
	}

	info := domain.LevelInfo{
		Level:           current.Level,
		Title:           current.Title,
		CurrentLevelXP:  current.XPRequired,
		NextLevelXP:     xp,
		ProgressPercent: 100,
	}
	if next == nil {
		return info
	}
	info.NextLevelXP = next.XPRequired
	if next.XPRequired > current.XPRequired {
		pct := float64(xp-current.XPRequired) / float64(next.XPRequired-current.XPRequired) * 100
		info.ProgressPercent = clamp(pct, 0, 100)
	}
	return info
}

// DetectLevelUp compares two XP values and returns the level reached when the
// level number increased, nil otherwise. A jump over several levels reports
// only the final level and only that level's diamond reward.
func (e *Engine) DetectLevelUp(oldXP, newXP int) *domain.LevelUpEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()

	before := resolve(e.initialized, e.levels, oldXP)
	after := resolve(e.initialized, e.levels, newXP)
	if after.Level <= before.Level {
		return nil
	}

	event := &domain.LevelUpEvent{LevelInfo: after}
	for _, l := range e.levels {
		if l.Level == after.Level {
			event.DiamondReward = l.DiamondsReward
			break
		}
	}
	return event
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
