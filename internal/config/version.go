package config

// Version is the application version, injected at build time via
// ldflags:
//   go build -ldflags "-X 'github.com/soulbridge/soulbridge/internal/config.Version=1.2.3'"
var Version = "dev"
