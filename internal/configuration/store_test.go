package configuration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddOverwrite(t *testing.T) {
	s := NewStore()
	assert.True(t, s.Add(Key{Key: "A", Value: "1", Visible: true}, false))
	assert.False(t, s.Add(Key{Key: "A", Value: "2", Visible: true}, false))

	k, ok := s.Get("A")
	require.True(t, ok)
	assert.Equal(t, "1", k.Value)

	assert.True(t, s.Add(Key{Key: "A", Value: "2", Visible: true}, true))
	k, _ = s.Get("A")
	assert.Equal(t, "2", k.Value)
}

func TestSetValueRejectsReadonly(t *testing.T) {
	s := NewStore()
	s.Add(Key{Key: "RO", Value: "x", Readonly: true, Visible: true}, false)

	_, err := s.SetValue("RO", "y")
	assert.Error(t, err)
}

func TestSetValueReportsRebootRequired(t *testing.T) {
	s := NewStore()
	s.Add(Key{Key: "WebSocketPingInterval", Value: "60", Reboot: true, Visible: true}, false)

	reboot, err := s.SetValue("WebSocketPingInterval", "30")
	require.NoError(t, err)
	assert.True(t, reboot)
}

func TestGetConfigurationExcludesInvisible(t *testing.T) {
	s := NewStore()
	s.Add(Key{Key: "Visible1", Value: "a", Visible: true}, false)
	s.Add(Key{Key: "Hidden1", Value: "b", Visible: false}, false)

	found, unknown := s.GetConfiguration(nil)
	assert.Empty(t, unknown)
	require.Len(t, found, 1)
	assert.Equal(t, "Visible1", found[0].Key)
}

func TestGetConfigurationReportsUnknownKeys(t *testing.T) {
	s := NewStore()
	s.Add(Key{Key: "Known", Value: "a", Visible: true}, false)

	found, unknown := s.GetConfiguration([]string{"Known", "Ghost"})
	require.Len(t, found, 1)
	assert.Equal(t, []string{"Ghost"}, unknown)
}

func TestSeedCoreDefaultsPopulatesHeartbeat(t *testing.T) {
	s := NewStore()
	SeedCoreDefaults(s)

	k, ok := s.Get("HeartbeatInterval")
	require.True(t, ok)
	assert.NotEmpty(t, k.Value)
}
