// Package config loads the shell's optional YAML configuration file:
// command aliases and a handful of display preferences consulted by
// internal/shell before falling back to its builtin command table.
//
// Grounded on github.com/go-delve/delve's pkg/config/config.go, pared
// down to what this debugger's line-oriented shell actually needs
// (delve's config also carries source-list line counts and DWARF
// substitute-path rules, both meaningless without symbols, which this
// engine's Non-goals exclude).
package config

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/ptracer/ptracer/pkg/dbgerr"
)

// Config is the root of ~/.ptracer/config.yml.
type Config struct {
	// Aliases maps a shell command name to the list of input words
	// that should be treated as invoking it, e.g. "continue": ["c",
	// "cont"].
	Aliases map[string][]string `yaml:"aliases"`

	// ShowRegisterChanges highlights registers that changed value
	// since the previous `regs` output when the shell prints `regs`.
	ShowRegisterChanges bool `yaml:"show-register-changes"`

	// DisassembleInstructionCount is how many instructions `disassemble`
	// prints when the caller doesn't specify a count.
	DisassembleInstructionCount int `yaml:"disassemble-instruction-count"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Aliases:                     map[string][]string{},
		ShowRegisterChanges:         true,
		DisassembleInstructionCount: 10,
	}
}

// Dir returns the directory ~/.ptracer, creating it if absent.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", dbgerr.OS("find home directory", err)
	}
	dir := filepath.Join(home, ".ptracer")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", dbgerr.OS("create config directory", err)
	}
	return dir, nil
}

// Path returns the path to config.yml under Dir.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yml"), nil
}

// Load reads and parses the config file at Path, returning Default if
// it does not exist.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	raw, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, dbgerr.OS("read config file", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, dbgerr.OS("parse config file", err)
	}
	return cfg, nil
}

// Save writes cfg to Path, creating the containing directory if
// necessary.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return dbgerr.OS("marshal config file", err)
	}
	if err := ioutil.WriteFile(path, raw, 0644); err != nil {
		return dbgerr.OS("write config file", err)
	}
	return nil
}

// ResolveAlias returns the canonical command name for a typed word,
// consulting cfg.Aliases before returning word unchanged.
func (c *Config) ResolveAlias(word string) string {
	for canonical, aliases := range c.Aliases {
		for _, a := range aliases {
			if a == word {
				return canonical
			}
		}
	}
	return word
}
