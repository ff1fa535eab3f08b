package simulator

import (
	"math"

	"github.com/kapu/campaign-ops-go/internal/constants"
	"github.com/kapu/campaign-ops-go/internal/domain"
)

// Rand is the randomness the simulator draws from. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Simulator is the progress bar and console script shown while a pipeline
// runs. It has no timers of its own; Runner drives it. Not safe for
// concurrent use.
type Simulator struct {
	rng      Rand
	active   bool
	progress float64
	script   []string
	next     int
}

func New(rng Rand) *Simulator {
	return &Simulator{rng: rng}
}

// Start activates the simulator with the script for mode.
func (s *Simulator) Start(mode domain.Mode, deepResearch bool) {
	s.active = true
	s.progress = constants.SimulatorConfig.StartProgress
	s.script = Script(mode, deepResearch, constants.SimulatorConfig.ResearchSpliceAt)
	s.next = 0
}

// Stop completes the bar. Callers reset it after a short delay.
func (s *Simulator) Stop() {
	s.active = false
	s.progress = 100
}

// Reset returns an inactive simulator to zero.
func (s *Simulator) Reset() {
	if s.active {
		return
	}
	s.progress = 0
	s.script = nil
	s.next = 0
}

func (s *Simulator) Active() bool {
	return s.active
}

func (s *Simulator) Progress() float64 {
	return s.progress
}

// TickProgress adds a random increment. Near the ceiling it only closes half
// the remaining gap, so an active bar never reaches it.
func (s *Simulator) TickProgress() float64 {
	if !s.active {
		return s.progress
	}
	ceiling := constants.SimulatorConfig.ProgressCeiling
	next := s.progress + s.rng.Float64()*constants.SimulatorConfig.MaxIncrement
	if next >= ceiling {
		next = s.progress + (ceiling-s.progress)/2
	}
	if next >= ceiling {
		next = math.Nextafter(ceiling, 0)
	}
	s.progress = next
	return s.progress
}

// NextLine returns the next script step. Once the script is exhausted it
// returns a filler line with FillerChance probability.
func (s *Simulator) NextLine() (string, bool) {
	if !s.active {
		return "", false
	}
	if s.next < len(s.script) {
		line := s.script[s.next]
		s.next++
		return line, true
	}
	if s.rng.Float64() < constants.SimulatorConfig.FillerChance {
		return fillerLines[s.rng.IntN(len(fillerLines))], true
	}
	return "", false
}
