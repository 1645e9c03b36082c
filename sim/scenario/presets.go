package scenario

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// PresetNames lists the built-in scenarios.
func PresetNames() []string {
	entries, err := presetFS.ReadDir("presets")
	if err != nil {
		panic(fmt.Sprintf("reading embedded presets: %v", err))
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Preset returns a built-in scenario by name.
func Preset(name string) (*Config, error) {
	data, err := presetFS.ReadFile("presets/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown preset %q; valid: %s", name, strings.Join(PresetNames(), ", "))
	}
	return Parse(data)
}

// Resolve loads ref as a preset name or, failing that, as a file path.
func Resolve(ref string) (*Config, error) {
	if !strings.ContainsAny(ref, "/\\.") {
		return Preset(ref)
	}
	return Load(ref)
}
