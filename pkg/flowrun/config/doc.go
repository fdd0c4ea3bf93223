/*
Package config loads flowrun settings and graph definitions from files.

# Typed Access

Config wraps a map[string]any decoded from YAML or JSON and returns
defaults for missing keys or mismatched types:

	cfg, err := config.FromFile("flowrun.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	maxSteps := cfg.Int("max_steps", 500)
	level := cfg.Section("log").String("level", "info")

Numbers decode as int from YAML and float64 from JSON; Int accepts both as
long as there is no fractional part.

# Settings

Settings collects the process-level options (database path, step bound,
logging, metrics, tracing, startup graphs):

	settings, err := config.LoadSettings("flowrun.yaml")
	logger := settings.NewLogger(os.Stderr)

# Graph Files

LoadGraphFile reads a graph definition. Edges are node names or
condition mappings:

	name: refine-loop
	entry: summarize
	edges:
	  summarize: measure
	  measure:
	    condition: "state.get('length', 0) > 400"
	    true: refine
	    false: null
	  refine: measure
*/
package config
