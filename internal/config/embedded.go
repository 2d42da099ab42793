package config

// Embedded gateway API key injected at build time via ldflags.
// Serves as a default and can be overridden by environment
// variables or config file.
//
// Build with:
//   go build -ldflags "-X 'github.com/soulbridge/soulbridge/internal/config.EmbeddedSlskdKey=xxx'"
var EmbeddedSlskdKey string
