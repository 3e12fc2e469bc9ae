package worldsim

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

// Scenario is the JSON description of a simulated match.
type Scenario struct {
	Map          string           `json:"map"`
	TickInterval float64          `json:"tickInterval"`
	Ticks        int              `json:"ticks"`
	Brushes      []Brush          `json:"brushes"`
	Players      []ScenarioPlayer `json:"players"`
}

// ScenarioPlayer is one scripted player.
type ScenarioPlayer struct {
	Slot     core.Slot           `json:"slot"`
	Team     int                 `json:"team"`
	Bot      bool                `json:"bot"`
	Origin   core.Vec3           `json:"origin"`
	Velocity core.Vec3           `json:"velocity"`
	Yaw      float64             `json:"yaw"`
	Pitch    float64             `json:"pitch"`
	Weapons  []core.EntityHandle `json:"weapons"`
}

// StandingBounds is the collision box of a standing player.
var StandingBounds = core.Bounds{Mins: core.Vec3{-16, -16, 0}, Maxs: core.Vec3{16, 16, 72}}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	if s.Ticks <= 0 {
		s.Ticks = 640
	}
	return &s, nil
}

// Build creates the world described by the scenario.
func (s *Scenario) Build() *World {
	w := New(s.TickInterval)
	w.Brushes = append(w.Brushes, s.Brushes...)
	for i, p := range s.Players {
		w.Put(NewPlayer(p.Slot, core.PawnID(1000+i), p.Team, p.Bot, p.Origin, p.Velocity, p.Pitch, p.Yaw), p.Weapons...)
	}
	return w
}

// NewPlayer builds a live standing player.
func NewPlayer(slot core.Slot, pawn core.PawnID, team int, bot bool, origin, velocity core.Vec3, pitch, yaw float64) *core.Entity {
	offset := core.Vec3{0, 0, 64}
	angles := core.Vec3{pitch, yaw, 0}
	bounds := StandingBounds
	return &core.Entity{
		Slot:       slot,
		Pawn:       pawn,
		Team:       team,
		Alive:      true,
		Bot:        bot,
		Origin:     &origin,
		Velocity:   &velocity,
		ViewOffset: &offset,
		EyeAngles:  &angles,
		Bounds:     &bounds,
	}
}
