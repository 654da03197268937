package main

import (
	"testing"

	"gorm.io/gorm/logger"
)

func TestGormLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected logger.LogLevel
	}{
		{name: "Silent", level: "silent", expected: logger.Silent},
		{name: "Error upper case", level: "ERROR", expected: logger.Error},
		{name: "Info", level: "info", expected: logger.Info},
		{name: "Unknown falls back to warn", level: "verbose", expected: logger.Warn},
		{name: "Empty falls back to warn", level: "", expected: logger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gormLogLevel(tt.level); got != tt.expected {
				t.Errorf("gormLogLevel(%q) = %v, expected %v", tt.level, got, tt.expected)
			}
		})
	}
}
