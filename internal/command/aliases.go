package command

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hpungsan/blockcad/internal/errors"
)

// Expansion is the command list an alias stands for. In YAML it is either a
// single command line or a sequence of them:
//
//	aliases:
//	  cls: clear
//	  reset: [clear, baseplate]
type Expansion []string

// UnmarshalYAML accepts a scalar or a sequence of scalars.
func (e *Expansion) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*e = Expansion{node.Value}
		return nil
	case yaml.SequenceNode:
		var lines []string
		if err := node.Decode(&lines); err != nil {
			return err
		}
		*e = lines
		return nil
	default:
		return fmt.Errorf("line %d: alias must be a string or a list of strings", node.Line)
	}
}

type aliasFile struct {
	Aliases map[string]Expansion `yaml:"aliases"`
}

// LoadAliases reads an alias file. A missing file yields no aliases.
func LoadAliases(path string) (map[string]Expansion, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to read aliases: %w", err))
	}
	return ParseAliases(data)
}

// ParseAliases decodes alias YAML. Alias names are case-insensitive and may not
// shadow a built-in command.
func ParseAliases(data []byte) (map[string]Expansion, error) {
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid aliases: %v", err))
	}
	out := make(map[string]Expansion, len(f.Aliases))
	for name, exp := range f.Aliases {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || strings.ContainsAny(key, " \t") {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid alias name %q", name))
		}
		if _, ok := builtins[key]; ok {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("alias %q shadows a built-in command", name))
		}
		if len(exp) == 0 {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("alias %q is empty", name))
		}
		out[key] = exp
	}
	return out, nil
}
