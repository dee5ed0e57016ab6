/*
Package config provides type-safe configuration extraction from map[string]any.

config wraps a map[string]any and provides typed accessor methods that handle
missing keys and type mismatches by returning default values. Keys may be
dotted paths into nested sections:

	cfg, err := config.FromFile("bytebuddhi.yaml")
	if err != nil {
	    return err
	}
	model := cfg.String("llm.model", "gpt-4-turbo-preview")
	timeout := cfg.Duration("search.timeout", 30*time.Second)

# Layering

Sources are combined with Merge, later layers winning. Environment
variables are read with FromEnv, using "__" for nesting:

	env := config.FromEnv("BYTEBUDDHI_", os.Environ())
	cfg = cfg.Merge(env) // BYTEBUDDHI_LLM__MODEL overrides llm.model

Environment values are strings; Int, Float, Bool and Duration parse them.

# Thread Safety

Config is safe for concurrent read access. Merge returns a new Config and
never modifies its inputs.
*/
package config
