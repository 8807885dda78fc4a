package commands

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"teachassist-backend/internal/scrapers/teachassist"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	configPath = filepath.Join(dir, "config.json5")
	t.Cleanup(func() { configPath = "config.json5" })

	err := os.WriteFile(configPath, []byte(`{
		// comments are allowed
		portal: { base_url: "https://ta.example.com" },
		database: { file: "state/teachassist.db" },
		credentials: { username: "123456789", password: "from-file" },
	}`), 0644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		watch: "@every 5m",
	}`), 0644)
	require.NoError(t, err)

	t.Setenv(env_username, "")
	t.Setenv(env_password, "from-env")

	config, err := readConfig()
	require.NoError(t, err)
	require.Equal(t, "https://ta.example.com", config.Portal.BaseUrl)
	require.Equal(t, "state/teachassist.db", config.Database.File)
	require.Equal(t, "123456789", config.Credentials.Username)
	require.Equal(t, "from-env", config.Credentials.Password)
	require.Equal(t, "@every 5m", config.Watch)
	require.Nil(t, config.Smtp)
}

func TestReadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	configPath = filepath.Join(dir, "config.json5")
	t.Cleanup(func() { configPath = "config.json5" })

	_, err := readConfig()
	require.Error(t, err)

	err = os.WriteFile(configPath, []byte(`{ portal: { base_url: "not a url" } }`), 0644)
	require.NoError(t, err)
	_, err = readConfig()
	require.ErrorContains(t, err, "invalid config")
}

func TestFindSlot(t *testing.T) {
	page := teachassist.AppointmentPage{
		Date: "2025-03-17",
		Appointments: []teachassist.Appointment{
			{Id: "Ms. Smith-10:30:00-18", CounselorName: "Ms. Smith", Time: "10:30:00"},
			{Id: "Mr. Jones-11:00:00-118", CounselorName: "Mr. Jones", Time: "11:00:00"},
		},
	}

	slot, err := findSlot(page, "18")
	require.NoError(t, err)
	require.Equal(t, "Ms. Smith", slot.CounselorName)

	slot, err = findSlot(page, "Mr. Jones-11:00:00-118")
	require.NoError(t, err)
	require.Equal(t, "11:00:00", slot.Time)

	_, err = findSlot(page, "7")
	require.Error(t, err)
}

func TestExclusive(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var runs atomic.Int32

	check := exclusive(func() {
		if runs.Add(1) == 1 {
			close(started)
			<-release
		}
	})

	done := make(chan bool)
	go func() {
		done <- check()
	}()
	<-started

	// a check that starts while the first one is running is skipped
	require.False(t, check())
	require.Equal(t, int32(1), runs.Load())

	close(release)
	require.True(t, <-done)

	require.True(t, check())
	require.Equal(t, int32(2), runs.Load())
}
