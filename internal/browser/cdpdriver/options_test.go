package cdpdriver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/capture-cli/internal/capture"
)

func TestLaunchSwitches(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		switches := launchSwitches(capture.LaunchOptions{Headless: true})
		assert.Equal(t, map[string]interface{}{
			"disable-dev-shm-usage": true,
			"hide-scrollbars":       true,
		}, switches)
	})

	t.Run("HeadlessDisabled", func(t *testing.T) {
		switches := launchSwitches(capture.LaunchOptions{Headless: false})
		assert.Equal(t, false, switches["headless"])
	})

	t.Run("SandboxDisabled", func(t *testing.T) {
		switches := launchSwitches(capture.LaunchOptions{Headless: true, DisableSandbox: true})
		assert.Equal(t, true, switches["no-sandbox"])
		assert.Equal(t, true, switches["disable-setuid-sandbox"])
	})

	t.Run("SandboxKeptByDefault", func(t *testing.T) {
		switches := launchSwitches(capture.LaunchOptions{Headless: true})
		assert.NotContains(t, switches, "no-sandbox")
	})

	t.Run("IgnoreTLSErrors", func(t *testing.T) {
		switches := launchSwitches(capture.LaunchOptions{IgnoreTLSErrors: true})
		assert.Equal(t, true, switches["ignore-certificate-errors"])
		assert.Equal(t, true, switches["allow-insecure-localhost"])
	})

	t.Run("WithCustomArgs", func(t *testing.T) {
		switches := launchSwitches(capture.LaunchOptions{
			Headless: true,
			Args:     []string{"--custom-arg1", "lang=de-DE", "--hide-scrollbars=false"},
		})
		assert.Equal(t, true, switches["custom-arg1"])
		assert.Equal(t, "de-DE", switches["lang"])
		assert.Equal(t, "false", switches["hide-scrollbars"], "user args override built-in switches")
	})
}

func TestAllocatorOptions(t *testing.T) {
	base := AllocatorOptions(capture.LaunchOptions{Headless: true})
	withExtras := AllocatorOptions(capture.LaunchOptions{
		Headless:  true,
		ExecPath:  "/opt/chrome/chrome",
		UserAgent: "capture-test",
	})
	assert.Len(t, withExtras, len(base)+2)
}
