// Package bot drives simulated players through the network proxy. A
// Scenario describes rooms, how many bots join each and how they behave.
package bot

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RoomPlan is one room of a scenario.
type RoomPlan struct {
	ID         string `yaml:"id"`
	Bots       int    `yaml:"bots"`
	NamePrefix string `yaml:"name_prefix"`
}

// Scenario is a bot run loaded from YAML.
//
// Precondition: Validate must pass before the scenario is run.
type Scenario struct {
	URL              string        `yaml:"url"`
	Duration         time.Duration `yaml:"duration"`
	UpdateRate       int           `yaml:"update_rate"`
	ShootProbability float64       `yaml:"shoot_probability"`
	JoinStagger      time.Duration `yaml:"join_stagger"`
	Enemies          int           `yaml:"enemies"`
	EnemyInterval    time.Duration `yaml:"enemy_interval"`
	Weapons          []string      `yaml:"weapons"`
	Rooms            []RoomPlan    `yaml:"rooms"`
}

// TotalBots returns the number of bots across all rooms.
func (s Scenario) TotalBots() int {
	n := 0
	for _, r := range s.Rooms {
		n += r.Bots
	}
	return n
}

// Validate checks the scenario invariants.
//
// Postcondition: Returns nil if the scenario is runnable, or an error describing all violations.
func (s Scenario) Validate() error {
	var errs []string
	if !strings.HasPrefix(s.URL, "ws://") && !strings.HasPrefix(s.URL, "wss://") {
		errs = append(errs, fmt.Sprintf("url must be a ws:// or wss:// URL, got %q", s.URL))
	}
	if s.Duration <= 0 {
		errs = append(errs, "duration must be positive")
	}
	if s.UpdateRate < 1 {
		errs = append(errs, fmt.Sprintf("update_rate must be >= 1, got %d", s.UpdateRate))
	}
	if s.ShootProbability < 0 || s.ShootProbability > 1 {
		errs = append(errs, fmt.Sprintf("shoot_probability must be within [0, 1], got %v", s.ShootProbability))
	}
	if s.JoinStagger < 0 {
		errs = append(errs, "join_stagger must not be negative")
	}
	if s.Enemies < 0 {
		errs = append(errs, fmt.Sprintf("enemies must be >= 0, got %d", s.Enemies))
	}
	if s.Enemies > 0 && s.EnemyInterval <= 0 {
		errs = append(errs, "enemy_interval must be positive when enemies are simulated")
	}
	if len(s.Weapons) == 0 {
		errs = append(errs, "weapons must not be empty")
	}
	if len(s.Rooms) == 0 {
		errs = append(errs, "rooms must not be empty")
	}
	seen := make(map[string]bool, len(s.Rooms))
	for i, r := range s.Rooms {
		if r.ID == "" {
			errs = append(errs, fmt.Sprintf("rooms[%d].id must not be empty", i))
		} else if seen[r.ID] {
			errs = append(errs, fmt.Sprintf("rooms[%d].id %q is duplicated", i, r.ID))
		}
		seen[r.ID] = true
		if r.Bots < 1 {
			errs = append(errs, fmt.Sprintf("rooms[%d].bots must be >= 1, got %d", i, r.Bots))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("scenario validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (s *Scenario) applyDefaults() {
	if s.UpdateRate == 0 {
		s.UpdateRate = 20
	}
	if s.EnemyInterval == 0 {
		s.EnemyInterval = time.Second
	}
	if len(s.Weapons) == 0 {
		s.Weapons = []string{"pistol"}
	}
	for i := range s.Rooms {
		if s.Rooms[i].NamePrefix == "" {
			s.Rooms[i].NamePrefix = "bot"
		}
	}
}

// ParseScenario decodes and validates a YAML scenario.
//
// Postcondition: Returns a valid Scenario or a non-nil error.
func ParseScenario(data []byte) (Scenario, error) {
	if len(data) == 0 {
		return Scenario{}, errors.New("parsing scenario: empty document")
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("parsing scenario: %w", err)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// LoadScenario reads and parses the scenario file at path.
//
// Precondition: path must name a readable YAML file.
// Postcondition: Returns a valid Scenario or a non-nil error.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("reading %s: %w", path, err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
