package sim

import "math/rand"

// mix is the target population fractions by behavior. Rounding residue is
// absorbed by Retail so the roster always has exactly the requested size.
var mix = []struct {
	behavior Behavior
	fraction float64
}{
	{Institutional, 0.07},
	{HFT, 0.14},
	{MarketMaker, 0.035},
	{Whale, 0.007},
	{Momentum, 0.035},
	{Arbitrageur, 0.014},
}

// DefaultPopulation is the standard roster size.
const DefaultPopulation = 1430

// NewRoster builds a reproducible participant population. Every
// participant gets a private seed drawn from a generator seeded with the
// master seed, so one seed determines the whole roster.
func NewRoster(n int, masterSeed int64) []*Participant {
	if n <= 0 {
		n = DefaultPopulation
	}
	seeder := rand.New(rand.NewSource(masterSeed))

	roster := make([]*Participant, 0, n)
	for _, m := range mix {
		count := int(float64(n)*m.fraction + 0.5)
		for i := 0; i < count && len(roster) < n; i++ {
			roster = append(roster, newParticipant(m.behavior, seeder.Int63()))
		}
	}
	for len(roster) < n {
		roster = append(roster, newParticipant(Retail, seeder.Int63()))
	}
	return roster
}
