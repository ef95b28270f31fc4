package progression

import "github.com/fastprodman/matrixledger/internal/domain"

// terminalLevel is the level whose transition closes a node.
const terminalLevel = domain.MaxLevel - 1

// Threshold is the pool needed to leave level: base * 3 * 2^level.
func Threshold(level int, base int64) int64 {
	return base * 3 << level
}

// LevelBonus is what the owner's referrer receives when a node leaves
// level: one third of the consumed threshold. The terminal transition pays
// no referrer bonus.
func LevelBonus(level int, base int64) int64 {
	if level >= terminalLevel {
		return 0
	}

	return base << level
}

// ReferrerEarnings is the most a referrer can have received from one node
// that reached level: the direct purchase bonus plus every level bonus up
// to level 4.
func ReferrerEarnings(level int, base int64) int64 {
	passed := min(level, terminalLevel)
	if passed < 0 {
		passed = 0
	}

	// sum_{l=0..passed-1} base*2^l
	return base + base*((int64(1)<<passed)-1)
}

// State is the progression-relevant part of a node.
type State struct {
	Level  int
	Pool   int64
	Closed bool
}

// Step is one level advancement produced by Advance.
type Step struct {
	FromLevel int
	ToLevel   int
	Consumed  int64
	Bonus     int64
	Payout    int64
}

// Advance applies every level-up the pool currently funds. With no new
// contribution a second call returns no steps.
func Advance(s State, base int64) (State, []Step) {
	var steps []Step

	for !s.Closed && s.Level < domain.MaxLevel {
		need := Threshold(s.Level, base)
		if s.Pool < need {
			break
		}

		if s.Level == terminalLevel {
			steps = append(steps, Step{
				FromLevel: s.Level,
				ToLevel:   domain.MaxLevel,
				Consumed:  s.Pool,
				Payout:    s.Pool,
			})
			s = State{Level: domain.MaxLevel, Pool: 0, Closed: true}

			break
		}

		steps = append(steps, Step{
			FromLevel: s.Level,
			ToLevel:   s.Level + 1,
			Consumed:  need,
			Bonus:     LevelBonus(s.Level, base),
		})
		s.Pool -= need
		s.Level++
	}

	return s, steps
}
