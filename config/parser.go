package config

import (
	"os"
	"reflect"
	"regexp"
	"strings"

	"gopkg.in/yaml.v2"
)

// EnvPrefix is the environment variable prefix this package's overlay
// rule uses: a field `Abc.Xyz` may be overridden by `SPFS_ABC_XYZ`,
// following the teacher's `configuration.Parser` scheme exactly, adapted
// to this core's single, versionless schema.
const EnvPrefix = "SPFS"

// Load reads a YAML document from path, starting from Default(), then
// overlays any matching environment variables (SPEC_FULL.md §2
// "Configuration").
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

// Parse decodes a YAML document into a Config seeded with Default(), then
// applies the environment overlay.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := overlayEnv(reflect.ValueOf(&cfg).Elem(), EnvPrefix, envMap()); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envMap() map[string]string {
	out := make(map[string]string, 64)
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		out[parts[0]] = parts[1]
	}
	return out
}

// overlayEnv walks v, overwriting any field (or map entry) whose
// PREFIX_FIELD_NESTED environment variable is set, recursing into nested
// structs and maps (ground on the teacher's configuration.Parser.
// overwriteFields/overwriteMap, narrowed to a single schema version).
func overlayEnv(v reflect.Value, prefix string, env map[string]string) error {
	for v.Kind() == reflect.Ptr {
		v = reflect.Indirect(v)
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			field := v.Type().Field(i)
			fieldPrefix := strings.ToUpper(prefix + "_" + field.Name)
			if raw, ok := env[fieldPrefix]; ok {
				target := reflect.New(field.Type)
				if err := yaml.Unmarshal([]byte(raw), target.Interface()); err != nil {
					return err
				}
				v.Field(i).Set(reflect.Indirect(target))
			}
			if err := overlayEnv(v.Field(i), fieldPrefix, env); err != nil {
				return err
			}
		}
	case reflect.Map:
		return overlayMap(v, prefix, env)
	}
	return nil
}

func overlayMap(m reflect.Value, prefix string, env map[string]string) error {
	re, err := regexp.Compile("^" + strings.ToUpper(prefix) + "_([A-Z0-9]+)$")
	if err != nil {
		return err
	}
	for key, val := range env {
		submatches := re.FindStringSubmatch(key)
		if submatches == nil {
			continue
		}
		if m.IsNil() {
			m.Set(reflect.MakeMap(m.Type()))
		}
		mapValue := reflect.New(m.Type().Elem())
		if err := yaml.Unmarshal([]byte(val), mapValue.Interface()); err != nil {
			return err
		}
		m.SetMapIndex(reflect.ValueOf(strings.ToLower(submatches[1])), reflect.Indirect(mapValue))
	}
	return nil
}
