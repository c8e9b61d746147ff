package engine

const (
	ReasonLastStanding = "Last Team Standing"
	ReasonTotalFailure = "Total System Failure"
	ReasonTimeout      = "TIMEOUT"
)

// CheckElimination decides whether hp losses have ended the match. With one
// team alive it wins outright; with none alive the best score wins.
func CheckElimination(teams map[TeamID]*TeamRecord) (Result, bool) {
	var alive []TeamID
	for _, t := range Teams {
		if teams[t].Alive() {
			alive = append(alive, t)
		}
	}
	switch len(alive) {
	case 0:
		return Result{Winner: bestScore(teams, Teams), Reason: ReasonTotalFailure}, true
	case 1:
		return Result{Winner: alive[0], Reason: ReasonLastStanding}, true
	default:
		return Result{}, false
	}
}

// ResolveTimeout picks the best score among surviving teams, or among every
// team when none survived.
func ResolveTimeout(teams map[TeamID]*TeamRecord) Result {
	var candidates []TeamID
	for _, t := range Teams {
		if teams[t].Alive() {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		candidates = Teams
	}
	return Result{Winner: bestScore(teams, candidates), Reason: ReasonTimeout}
}

// bestScore returns the highest scorer; earlier teams win ties.
func bestScore(teams map[TeamID]*TeamRecord, candidates []TeamID) TeamID {
	best := candidates[0]
	for _, t := range candidates[1:] {
		if teams[t].Score > teams[best].Score {
			best = t
		}
	}
	return best
}
