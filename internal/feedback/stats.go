package feedback

// Stats aggregates per-pipeline counts and attempt maxima for one partition.
type Stats struct {
	Total int

	SSMLQueued     int
	SSMLProcessing int
	SSMLCompleted  int
	SSMLFailed     int

	AudioQueued     int
	AudioProcessing int
	AudioCompleted  int
	AudioFailed     int
	AudioRetrying   int

	MaxSSMLAttempts  int
	MaxAudioAttempts int
}

// ComputeStats derives aggregate counts from a partition slice. It holds no
// state of its own, so it cannot drift from the table.
func ComputeStats(records []Record) Stats {
	var stats Stats
	stats.Total = len(records)

	for _, rec := range records {
		switch rec.SSMLStatus {
		case StatusQueued:
			stats.SSMLQueued++
		case StatusProcessing:
			stats.SSMLProcessing++
		case StatusCompleted:
			stats.SSMLCompleted++
		case StatusFailed:
			stats.SSMLFailed++
		}

		switch rec.AudioStatus {
		case StatusQueued:
			stats.AudioQueued++
		case StatusProcessing:
			stats.AudioProcessing++
		case StatusCompleted:
			stats.AudioCompleted++
		case StatusFailed:
			stats.AudioFailed++
		case StatusRetrying:
			stats.AudioRetrying++
		}

		if rec.SSMLAttempts > stats.MaxSSMLAttempts {
			stats.MaxSSMLAttempts = rec.SSMLAttempts
		}
		if rec.AudioAttempts > stats.MaxAudioAttempts {
			stats.MaxAudioAttempts = rec.AudioAttempts
		}
	}
	return stats
}
