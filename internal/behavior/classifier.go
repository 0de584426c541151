package behavior

// DominantPersona returns the persona with the highest score, or General
// when nothing has scored. Ties go to the persona that comes first in
// canonical order.
func (s *Store) DominantPersona() string {
	best, bestScore := General, 0
	for _, p := range Personas {
		if s.scores[p] > bestScore {
			best, bestScore = p, s.scores[p]
		}
	}
	return best
}

// PreferredTime returns the busiest timing bucket, or AnyTime when no
// interaction has been recorded. Ties go to the earlier bucket of the day.
func (s *Store) PreferredTime() string {
	best, bestCount := AnyTime, 0
	for _, t := range TimesOfDay {
		if s.timing[t] > bestCount {
			best, bestCount = t, s.timing[t]
		}
	}
	return best
}
