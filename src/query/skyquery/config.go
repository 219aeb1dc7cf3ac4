package skyquery

import (
	"fmt"

	"github.com/please-build/gcfg"
)

// Config is the engine's ambient configuration, following the same
// nested-struct-with-help-tags shape core.Configuration uses so it can be
// dumped with gcfg the way query.Config dumps *core.Configuration.
type Config struct {
	Query struct {
		KeepGoing          bool     `help:"Report as many errors as possible instead of failing at the first one."`
		LoadingPhaseThreads int     `help:"Thread count for universe preparation. The engine does not read it; patterns are resolved one at a time."`
		UniverseScope      []string `help:"Target patterns defining the universe a query is evaluated against."`
		ParserPrefix       string   `help:"Prefix for the universe's loading phase. The engine does not read it."`
		BlacklistDirs      []string `help:"Package-name prefixes excluded from the universe, mirroring Please.BlacklistDirs."`
	}
}

// DefaultConfig returns the engine's zero-value-safe defaults.
func DefaultConfig() *Config {
	c := &Config{}
	c.Query.LoadingPhaseThreads = 1
	return c
}

// DumpConfig renders the config in the same human-readable format
// query.Config uses for *core.Configuration.
func DumpConfig(config *Config) (string, error) {
	v, err := gcfg.Stringify(config)
	if err != nil {
		return "", fmt.Errorf("failed to stringify skyquery config: %w", err)
	}
	return v, nil
}
