package grading

// Band is a CEFR proficiency level.
type Band string

const (
	BandA1 Band = "A1"
	BandA2 Band = "A2"
	BandB1 Band = "B1"
	BandB2 Band = "B2"
	BandC1 Band = "C1"
	BandC2 Band = "C2"
)

// thresholds are checked top-down; the first floor the total reaches wins.
var thresholds = []struct {
	floor int
	band  Band
}{
	{90, BandC2},
	{75, BandC1},
	{60, BandB2},
	{45, BandB1},
	{30, BandA2},
}

// BandFor maps a 0-100 total to its band.
func BandFor(total int) Band {
	for _, t := range thresholds {
		if total >= t.floor {
			return t.band
		}
	}
	return BandA1
}

// Rank orders bands from A1 (0) to C2 (5). Unknown bands rank -1.
func (b Band) Rank() int {
	switch b {
	case BandA1:
		return 0
	case BandA2:
		return 1
	case BandB1:
		return 2
	case BandB2:
		return 3
	case BandC1:
		return 4
	case BandC2:
		return 5
	default:
		return -1
	}
}
