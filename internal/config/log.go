package config

import "log"

// Log writes a message when level is within the configured verbosity.
// Level 0 is always written, also for a nil Config.
func (c *Config) Log(level int, format string, args ...any) {
	if level > c.Verbosity() {
		return
	}
	log.Printf(format, args...)
}
