package status

import (
	"time"

	"github.com/mizunoto/tankwatch/internal/model"
)

// rainThresholdLiters is the fixed policy constant: same-day volume increases
// above this total are attributed to rain.
const rainThresholdLiters = 10

// SystemStatus is a pure projection of the water reading buffer. It is
// recomputed on every buffer change and never persisted.
type SystemStatus struct {
	IsRaining           bool    `json:"isRaining"`
	IsPumpActive        bool    `json:"isPumpActive"`
	DailyRainfallVolume float64 `json:"dailyRainfallVolume"`
}

// Detect derives rain and pump indicators from a newest-first list of water
// readings. The day boundary for rain estimation is local midnight in the
// process timezone.
func Detect(readings []model.WaterReading) SystemStatus {
	return detectAt(readings, time.Now())
}

func detectAt(readings []model.WaterReading, now time.Time) SystemStatus {
	var st SystemStatus

	if len(readings) == 0 {
		return st
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	today := readings[:0:0]
	for _, r := range readings {
		if !r.Timestamp.In(now.Location()).Before(startOfDay) {
			today = append(today, r)
		}
	}

	// Rain estimation needs at least two same-day points.
	if len(today) < 2 {
		return st
	}

	var totalIncrease float64
	for i := 0; i < len(today)-1; i++ {
		diff := today[i].VolumeLiters - today[i+1].VolumeLiters
		if diff > 0 {
			totalIncrease += diff
		}
	}

	st.DailyRainfallVolume = totalIncrease
	if totalIncrease > rainThresholdLiters {
		st.IsRaining = true
	}

	// Pump detection looks at the three most recent readings overall,
	// ignoring the day filter: three successive drops mean the pump is on.
	// Ties break the chain; the comparison is strict.
	if len(readings) >= 3 {
		first, second, third := readings[0], readings[1], readings[2]
		if first.VolumeLiters < second.VolumeLiters && second.VolumeLiters < third.VolumeLiters {
			st.IsPumpActive = true
		}
	}

	return st
}
