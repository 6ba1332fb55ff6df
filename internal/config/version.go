package config

// Version is the pathmerge binary version.
// Set at build time via: -ldflags "-X github.com/persistorai/pathmerge/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
