package bot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const sampleScenario = `
url: ws://localhost:3000/ws
duration: 30s
update_rate: 20
shoot_probability: 0.1
join_stagger: 100ms
enemies: 4
enemy_interval: 500ms
weapons: [pistol, rifle]
rooms:
  - id: alpha
    bots: 3
  - id: bravo
    bots: 2
    name_prefix: grunt
`

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(sampleScenario))
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:3000/ws", s.URL)
	assert.Equal(t, 30*time.Second, s.Duration)
	assert.Equal(t, 100*time.Millisecond, s.JoinStagger)
	assert.Equal(t, 500*time.Millisecond, s.EnemyInterval)
	assert.Equal(t, []string{"pistol", "rifle"}, s.Weapons)
	require.Len(t, s.Rooms, 2)
	assert.Equal(t, "bot", s.Rooms[0].NamePrefix)
	assert.Equal(t, "grunt", s.Rooms[1].NamePrefix)
	assert.Equal(t, 5, s.TotalBots())
}

func TestParseScenario_Defaults(t *testing.T) {
	s, err := ParseScenario([]byte("url: ws://h/ws\nduration: 1s\nrooms: [{id: r1, bots: 1}]\n"))
	require.NoError(t, err)
	assert.Equal(t, 20, s.UpdateRate)
	assert.Equal(t, time.Second, s.EnemyInterval)
	assert.Equal(t, []string{"pistol"}, s.Weapons)
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"empty", "", "empty document"},
		{"syntax", "rooms: [", "parsing scenario"},
		{"bad url", "url: http://h\nduration: 1s\nrooms: [{id: r1, bots: 1}]", "url must be"},
		{"no duration", "url: ws://h\nrooms: [{id: r1, bots: 1}]", "duration must be positive"},
		{"no rooms", "url: ws://h\nduration: 1s", "rooms must not be empty"},
		{"duplicate room", "url: ws://h\nduration: 1s\nrooms: [{id: r1, bots: 1}, {id: r1, bots: 1}]", "duplicated"},
		{"zero bots", "url: ws://h\nduration: 1s\nrooms: [{id: r1, bots: 0}]", "bots must be >= 1"},
		{"probability", "url: ws://h\nduration: 1s\nshoot_probability: 2\nrooms: [{id: r1, bots: 1}]", "shoot_probability"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tc.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	err := Scenario{}.Validate()
	require.Error(t, err)
	for _, want := range []string{"url", "duration", "update_rate", "weapons", "rooms"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleScenario), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, 5, s.TotalBots())

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestProperty_SimulatedEnemiesAreAliveAndDistinct(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 32).Draw(rt, "n")
		elapsed := time.Duration(rapid.Int64Range(0, int64(time.Hour)).Draw(rt, "elapsed"))

		enemies := simulateEnemies(n, elapsed)
		if len(enemies) != n {
			rt.Fatalf("got %d enemies, want %d", len(enemies), n)
		}
		seen := make(map[string]bool, n)
		for _, e := range enemies {
			if !e.Alive {
				rt.Fatalf("enemy %s not alive", e.ID)
			}
			if seen[e.ID] {
				rt.Fatalf("duplicate enemy id %s", e.ID)
			}
			seen[e.ID] = true
		}
	})
}
