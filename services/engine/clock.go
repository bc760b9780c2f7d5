package engine

import "time"

// GoldbachNumbers is the fixed set used for time confirmation.
var GoldbachNumbers = []int{3, 11, 17, 29, 41, 47, 53, 59, 71, 83, 89, 97}

// TimeSignature is the Goldbach time read of a wall-clock moment.
type TimeSignature struct {
	Time       time.Time `json:"time"`
	Hour       int       `json:"hour"`
	Minute     int       `json:"minute"`
	Sum        int       `json:"sum_value"`
	IsGoldbach bool      `json:"is_goldbach"`
	Nearest    int       `json:"nearest_goldbach"`
}

// AnalyzeTime reports whether hour+minute lands on a Goldbach number.
func AnalyzeTime(t time.Time) TimeSignature {
	hour, minute := t.Hour(), t.Minute()
	sum := hour + minute

	isGoldbach := false
	nearest := GoldbachNumbers[0]
	bestDist := absInt(nearest - sum)
	for _, n := range GoldbachNumbers {
		if n == sum {
			isGoldbach = true
		}
		if d := absInt(n - sum); d < bestDist {
			nearest = n
			bestDist = d
		}
	}

	return TimeSignature{
		Time:       t,
		Hour:       hour,
		Minute:     minute,
		Sum:        sum,
		IsGoldbach: isGoldbach,
		Nearest:    nearest,
	}
}

// NextGoldbachTimes walks forward minute by minute and returns the
// next count Goldbach timestamps after from.
func NextGoldbachTimes(from time.Time, count int) []TimeSignature {
	out := make([]TimeSignature, 0, count)
	cur := from
	for len(out) < count {
		cur = cur.Add(time.Minute)
		if sig := AnalyzeTime(cur); sig.IsGoldbach {
			out = append(out, sig)
		}
	}
	return out
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// AMDCycle is one of the four recurring day segments.
type AMDCycle string

const (
	CycleAsian         AMDCycle = "A"
	CycleManipulation  AMDCycle = "M"
	CycleDistribution1 AMDCycle = "D1"
	CycleDistribution2 AMDCycle = "D2"
)

// AMDInfo describes the active cycle and its trading character.
type AMDInfo struct {
	Cycle       AMDCycle `json:"cycle"`
	Name        string   `json:"cycle_name"`
	Description string   `json:"description"`
	TradingBias string   `json:"trading_bias"`
}

// AMDCycleAt maps an hour of day to its AMD segment.
//
// A = Asian (20:00-03:00), M = London/Manipulation (03:00-09:00),
// D1 = NY AM (09:00-12:00), D2 = NY PM (everything else).
func AMDCycleAt(t time.Time) AMDInfo {
	hour := t.Hour()
	switch {
	case hour >= 20 || hour < 3:
		return AMDInfo{
			Cycle:       CycleAsian,
			Name:        "Asian Session",
			Description: "Consolidation phase - mark the range",
			TradingBias: "Wait - mark the Asian range",
		}
	case hour < 9:
		return AMDInfo{
			Cycle:       CycleManipulation,
			Name:        "London/Manipulation",
			Description: "Creates HOD/LOD in 80%+ of cases",
			TradingBias: "Look for a stop run of the Asian range",
		}
	case hour < 12:
		return AMDInfo{
			Cycle:       CycleDistribution1,
			Name:        "NY AM (D1)",
			Description: "Continuation or reversal of the M move",
			TradingBias: "Continuation if M was small, reversal if M was large",
		}
	default:
		return AMDInfo{
			Cycle:       CycleDistribution2,
			Name:        "NY PM (D2)",
			Description: "Profit taking and reversals common",
			TradingBias: "Caution - frequent reversals",
		}
	}
}

// monthPartition is a row of the monthly partition table.
type monthPartition struct {
	startDay int
	number   int
}

// monthlyPartitions maps calendar month to partition start day and
// expected stop-run magnitude.
var monthlyPartitions = map[time.Month]monthPartition{
	time.January:   {8, 18},
	time.February:  {7, 27},
	time.March:     {6, 36},
	time.April:     {5, 45},
	time.May:       {4, 54},
	time.June:      {3, 63},
	time.July:      {2, 72},
	time.August:    {1, 81},
	time.September: {9, 99},
	time.October:   {8, 108},
	time.November:  {7, 117},
	time.December:  {6, 126},
}

// keyDayNotes flags the significant partition days.
var keyDayNotes = map[int]string{
	3:  "POI clue day - look for gap/block/liquidity",
	11: "First major swing (Goldbach number)",
	17: "Second swing if day 11 didn't complete",
}

// PartitionInfo locates a date inside its monthly partition.
type PartitionInfo struct {
	Month               int    `json:"month"`
	Day                 int    `json:"day"`
	PartitionStart      int    `json:"partition_start"`
	PartitionNumber     int    `json:"partition_number"`
	PartitionDay        int    `json:"partition_day"`
	IsKeyDay            bool   `json:"is_key_day"`
	KeyDayNote          string `json:"key_day_info,omitempty"`
	ExpectedStopRunPips int    `json:"expected_stop_run_pips"`
}

// PartitionInfoAt computes the monthly partition day index for a date.
// A zero partition day means the date belongs to the previous
// partition and carries no key-day flags.
func PartitionInfoAt(t time.Time) PartitionInfo {
	month, day := t.Month(), t.Day()
	part := monthlyPartitions[month]

	partitionDay := 0
	if day >= part.startDay {
		partitionDay = day - part.startDay + 1
	}

	note, isKey := keyDayNotes[partitionDay]
	return PartitionInfo{
		Month:               int(month),
		Day:                 day,
		PartitionStart:      part.startDay,
		PartitionNumber:     part.number,
		PartitionDay:        partitionDay,
		IsKeyDay:            isKey,
		KeyDayNote:          note,
		ExpectedStopRunPips: part.number,
	}
}
