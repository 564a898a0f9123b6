// Package config loads the small, typed configuration this core actually
// reads: storage roots, renderer mode, runtime filesystem options, and
// solver repository order (SPEC_FULL.md §2 "Configuration"). It mirrors the
// teacher's `configuration` package's mechanism -- a YAML file parsed into
// a struct, then overlaid by environment variables of the same
// `PREFIX_FIELD_NESTED` shape -- without reproducing its full versioned
// schema machinery, since CLI/config-file schema evolution is out of scope
// here.
package config

// Storage configures where repository content lives and which repository
// a bare name resolves against.
type Storage struct {
	// Roots maps a repository name to its local filesystem root.
	Roots map[string]string `yaml:"roots,omitempty"`
	// Default names the repository used when none is specified.
	Default string `yaml:"default,omitempty"`
}

// Renderer configures how manifests are materialized onto local disk
// (spec.md §4.6).
type Renderer struct {
	// Mode is "copy", "hardlink", or "hardlink-then-copy".
	Mode string `yaml:"mode,omitempty"`
}

// Runtime configures where runtime state and mount directories live
// (spec.md §4.7).
type Runtime struct {
	Root            string `yaml:"root,omitempty"`
	DefaultEditable bool   `yaml:"defaulteditable,omitempty"`
}

// Solver configures the default repository search order for the
// dependency solver (spec.md §4.9 "Enumerate candidate builds from
// repositories in configured order").
type Solver struct {
	Repositories []string `yaml:"repositories,omitempty"`
}

// Log configures the logging subsystem (SPEC_FULL.md §2 "Logging").
type Log struct {
	Level     string `yaml:"level,omitempty"`
	Formatter string `yaml:"formatter,omitempty"`
}

// Config is the top-level, versionless configuration document.
type Config struct {
	Storage  Storage  `yaml:"storage,omitempty"`
	Renderer Renderer `yaml:"renderer,omitempty"`
	Runtime  Runtime  `yaml:"runtime,omitempty"`
	Solver   Solver   `yaml:"solver,omitempty"`
	Log      Log      `yaml:"log,omitempty"`
}

// Default returns a Config with this core's defaults filled in.
func Default() Config {
	return Config{
		Renderer: Renderer{Mode: "hardlink"},
		Log:      Log{Level: "info", Formatter: "text"},
	}
}
