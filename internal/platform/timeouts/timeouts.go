// Package timeouts defines shared timeout constants used across the tools.
package timeouts

import "time"

// ScenarioStep caps one scenario step, including its chapter lookups.
const ScenarioStep = 10 * time.Second

// TelemetryShutdown limits how long a tool waits for spans to flush on exit.
const TelemetryShutdown = 5 * time.Second
