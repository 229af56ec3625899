package config

import (
	"hugin/internal/logging"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" json:"level,omitempty"`                     // debug, info, warn, error
	Format     string          `yaml:"format" json:"format,omitempty"`                   // console, json
	File       string          `yaml:"file" json:"file,omitempty"`                       // optional log file
	Audit      string          `yaml:"audit,omitempty" json:"audit,omitempty"`           // JSON-lines job audit trail
	Categories map[string]bool `yaml:"categories,omitempty" json:"categories,omitempty"` // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Categories that are not listed are enabled.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}

// Validate checks the level name.
func (c *LoggingConfig) Validate() error {
	_, err := logging.ParseLevel(c.Level)
	return err
}

// ToLogging converts the section to the logging package's settings.
func (c LoggingConfig) ToLogging() logging.Config {
	file, err := ExpandPath(c.File)
	if err != nil {
		file = c.File
	}
	audit, err := ExpandPath(c.Audit)
	if err != nil {
		audit = c.Audit
	}
	return logging.Config{
		Level:      c.Level,
		Format:     c.Format,
		File:       file,
		Audit:      audit,
		Categories: c.Categories,
	}
}
