package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"
)

// YAMLResolver loads flag values from a YAML document. Keys are either flat
// flag names or nested maps joined with '-', so "postgres: {conn-string: ...}"
// and "postgres-conn-string: ..." set the same flag. '_' and '-' are
// interchangeable in keys.
func YAMLResolver(r io.Reader) (kong.Resolver, error) {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode yaml config: %w", err)
	}

	values := make(map[string]any)
	flattenYAML("", doc, values)

	var f kong.ResolverFunc = func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		return values[flag.Name], nil
	}
	return f, nil
}

func flattenYAML(prefix string, in map[string]any, out map[string]any) {
	for key, value := range in {
		name := strings.ReplaceAll(key, "_", "-")
		if prefix != "" {
			name = prefix + "-" + name
		}

		if nested, ok := value.(map[string]any); ok {
			flattenYAML(name, nested, out)
			continue
		}
		out[name] = value
	}
}
