package logging

import (
	"fmt"
	"strings"
)

// LogFormat represents the output format for logs
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// LogOutput represents the destination for logs
type LogOutput string

const (
	LogOutputStdout LogOutput = "stdout"
	LogOutputStderr LogOutput = "stderr"
	LogOutputFile   LogOutput = "file"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Config represents the logging configuration
type Config struct {
	Level  LogLevel  `yaml:"level" json:"level"`
	Format LogFormat `yaml:"format" json:"format"`
	Output LogOutput `yaml:"output" json:"output"`

	// Only used when Output is "file"
	FilePath string `yaml:"filePath,omitempty" json:"filePath,omitempty"`

	// Component-specific log levels override Level
	ComponentLevels map[string]LogLevel `yaml:"componentLevels,omitempty" json:"componentLevels,omitempty"`

	EnableCaller bool `yaml:"enableCaller" json:"enableCaller"`
}

// DefaultConfig returns a default logging configuration
func DefaultConfig() *Config {
	return &Config{
		Level:  LogLevelInfo,
		Format: LogFormatJSON,
		Output: LogOutputStdout,
	}
}

// Validate checks the configuration and normalizes case-insensitive fields
func (c *Config) Validate() error {
	if c.Level == "" {
		c.Level = LogLevelInfo
	}
	c.Level = LogLevel(strings.ToLower(string(c.Level)))
	switch c.Level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", c.Level)
	}

	if c.Format == "" {
		c.Format = LogFormatJSON
	}
	c.Format = LogFormat(strings.ToLower(string(c.Format)))
	switch c.Format {
	case LogFormatJSON, LogFormatText:
	default:
		return fmt.Errorf("format must be one of [json, text], got '%s'", c.Format)
	}

	if c.Output == "" {
		c.Output = LogOutputStdout
	}
	c.Output = LogOutput(strings.ToLower(string(c.Output)))
	switch c.Output {
	case LogOutputStdout, LogOutputStderr, LogOutputFile:
	default:
		return fmt.Errorf("output must be one of [stdout, stderr, file], got '%s'", c.Output)
	}

	if c.Output == LogOutputFile && strings.TrimSpace(c.FilePath) == "" {
		return fmt.Errorf("filePath is required when output is file")
	}

	for component, level := range c.ComponentLevels {
		normalized := LogLevel(strings.ToLower(string(level)))
		switch normalized {
		case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
			c.ComponentLevels[component] = normalized
		default:
			return fmt.Errorf("componentLevels[%s] must be one of [debug, info, warn, error], got '%s'", component, level)
		}
	}

	return nil
}

// GetLevelForComponent returns the effective level for a component
func (c *Config) GetLevelForComponent(component string) LogLevel {
	if level, ok := c.ComponentLevels[component]; ok {
		return level
	}
	return c.Level
}
