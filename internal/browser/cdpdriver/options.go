package cdpdriver

import (
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/capture-cli/internal/capture"
)

// launchSwitches returns the Chrome switches layered on top of chromedp's defaults.
// A false value removes a default switch.
func launchSwitches(o capture.LaunchOptions) map[string]interface{} {
	switches := map[string]interface{}{
		// Containers often mount a tiny /dev/shm.
		"disable-dev-shm-usage": true,
		"hide-scrollbars":       true,
	}

	if !o.Headless {
		switches["headless"] = false
	}
	if o.DisableSandbox {
		switches["no-sandbox"] = true
		switches["disable-setuid-sandbox"] = true
	}
	if o.DisableGPU {
		switches["disable-gpu"] = true
	}
	if o.IgnoreTLSErrors {
		switches["ignore-certificate-errors"] = true
		switches["allow-insecure-localhost"] = true
	}

	// User supplied switches win over everything above.
	for _, f := range o.ExtraFlags() {
		if f.HasValue {
			switches[f.Name] = f.Value
		} else {
			switches[f.Name] = true
		}
	}
	return switches
}

// AllocatorOptions builds the exec allocator options for one browser launch.
func AllocatorOptions(o capture.LaunchOptions) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	for name, value := range launchSwitches(o) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	if o.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(o.UserAgent))
	}
	return opts
}
