// Package config loads, normalizes, and validates reelcut settings.
//
// Settings come from a TOML file (or YAML when the file ends in .yaml/.yml)
// layered over repository defaults, then environment overrides for service
// credentials, then command-line flags applied by the caller. Validation
// failures are returned as configuration errors so the CLI can report them
// before any media work starts.
package config
