package stats

// This file contains helpers around daily stats. It complements stats.go.

// ResetDaily clears the global daily max map. Player records are kept.
func (t *Tracker) ResetDaily() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.dailyMax {
		delete(t.dailyMax, k)
	}
}

// Prune drops daily entries older than keep days, counting today.
func (t *Tracker) Prune(keep int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := dateKey(t.now().AddDate(0, 0, -keep+1))
	for k := range t.dailyMax {
		if k < cutoff {
			delete(t.dailyMax, k)
		}
	}
}
