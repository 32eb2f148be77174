package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Command describes one external program the sink may run.
type Command struct {
	Command     string            `yaml:"command" json:"command" toml:"command" mapstructure:"command"`
	Args        []string          `yaml:"args" json:"args" toml:"args" mapstructure:"args"`
	Environment map[string]string `yaml:"env" json:"env" toml:"env" mapstructure:"env"`
	Dir         string            `yaml:"dir" json:"dir" toml:"dir" mapstructure:"dir"`
}

// IsZero reports whether no program is configured.
func (c Command) IsZero() bool {
	return strings.TrimSpace(c.Command) == ""
}

// Commands groups the programs used by the Sink.
type Commands struct {
	// Deliver receives the text on stdin and hands it to the target.
	Deliver Command `yaml:"deliver" json:"deliver" toml:"deliver" mapstructure:"deliver"`
	// Trigger submits what Deliver handed over. Optional.
	Trigger Command `yaml:"trigger" json:"trigger" toml:"trigger" mapstructure:"trigger"`
}

// LoadCommands reads a YAML or JSON command file. A missing file yields no commands.
func LoadCommands(path string) (Commands, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Commands{}, nil
		}
		return Commands{}, fmt.Errorf("failed to read sink commands: %w", err)
	}

	var cmds Commands
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cmds); err != nil {
			return Commands{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return cmds, nil
	}
	if err := yaml.Unmarshal(data, &cmds); err != nil {
		return Commands{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cmds, nil
}
