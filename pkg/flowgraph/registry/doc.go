// Package registry provides a generic thread-safe registry keyed by name.
//
// It backs plugin-style lookups such as LLM providers: implementations
// register a factory under a name in init, and configuration selects one.
//
//	var providers = registry.New[string, Factory]()
//
//	func init() {
//	    if err := providers.Add("openai", newOpenAI); err != nil {
//	        panic(err)
//	    }
//	}
//
//	factory, err := providers.Lookup(cfg.Provider)
//
// Add refuses duplicates; Set overwrites. Keys and All return entries in
// key order. All iterates over a snapshot, so the registry may be changed
// inside the loop.
package registry
