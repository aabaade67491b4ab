package config

// Version is the forumport binary version.
// Set at build time via: -ldflags "-X github.com/persistorai/forumport/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
