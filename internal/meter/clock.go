package meter

// ElapsedActiveMs returns the active ride duration in milliseconds.
// When pausedAt is non-nil the ride is paused and the clock is frozen at the
// moment the pause began. The result is never negative.
func ElapsedActiveMs(startedAt, now, totalPausedMs int64, pausedAt *int64) int64 {
	end := now
	if pausedAt != nil {
		end = *pausedAt
	}

	elapsed := end - startedAt - totalPausedMs
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// foldPause returns totalPausedMs extended by the open pause interval.
func foldPause(totalPausedMs int64, pausedAt *int64, resumedAt int64) int64 {
	if pausedAt == nil {
		return totalPausedMs
	}
	if d := resumedAt - *pausedAt; d > 0 {
		return totalPausedMs + d
	}
	return totalPausedMs
}
