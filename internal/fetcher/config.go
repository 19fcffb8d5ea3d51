package fetcher

import "time"

type Config struct {
	// MaxScripts bounds how many linked scripts are fetched per page.
	MaxScripts int

	// MaxConcurrency bounds concurrent script sub-fetches.
	MaxConcurrency int

	// ScriptTimeout is the per-script fetch budget, shorter than the page
	// budget so straggling assets cannot stall the pipeline.
	ScriptTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxScripts:     15,
		MaxConcurrency: 4,
		ScriptTimeout:  3 * time.Second,
	}
}
