package config

import (
	"time"
)

type Log struct {
	Path          string        `toml:"path" mapstructure:"path"`
	RotationCount uint          `toml:"rotationCount" mapstructure:"rotationCount"`
	RotationTime  time.Duration `toml:"rotationTime" mapstructure:"rotationTime"`
	RotationSize  uint          `toml:"rotationSize" mapstructure:"rotationSize"`
}

func (l *Log) Init() {
	if l.RotationCount == 0 {
		l.RotationCount = 30
	}
	if l.RotationTime == 0 {
		l.RotationTime = 24 * time.Hour
	}
	if l.RotationSize == 0 {
		l.RotationSize = 1024 * 1024 * 1024
	}
}
