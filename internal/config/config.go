package config

import (
	"os"
	"strconv"

	"github.com/rs/zerolog"
)

type PngConfig struct {
	LogLevel zerolog.Level

	// IgnoreChecksums accepts chunks whose stored CRC does not match.
	IgnoreChecksums bool

	// MaxChunkLength bounds a single chunk payload when streaming. The PNG
	// format itself caps lengths at 2^31-1.
	MaxChunkLength uint32
}

var Config = PngConfig{
	LogLevel:        zerolog.InfoLevel,
	IgnoreChecksums: false,
	MaxChunkLength:  1<<31 - 1,
}

func init() {
	loadEnv(&Config)
}

// loadEnv applies PNG_LOG_LEVEL and PNG_IGNORE_CRC. Unparseable values are
// ignored and the existing setting kept.
func loadEnv(c *PngConfig) {
	if lvl, ok := os.LookupEnv("PNG_LOG_LEVEL"); ok {
		if parsed, err := zerolog.ParseLevel(lvl); err == nil {
			c.LogLevel = parsed
		}
	}
	if v, ok := os.LookupEnv("PNG_IGNORE_CRC"); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			c.IgnoreChecksums = parsed
		}
	}
}
