// Package config loads rvfilter settings from defaults, an optional YAML
// file and RVFILTER_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"rvfilter/internal/disasm"
)

// Backend names.
const (
	BackendObjdump = "objdump"
	BackendNative  = "native"
)

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Config is the rvfilter configuration. The zero value is not usable; start
// from Default.
type Config struct {
	Objdump   string `yaml:"objdump" json:"objdump" jsonschema:"title=Objdump,description=Disassembler command name or path"`
	Arch      string `yaml:"arch" json:"arch" jsonschema:"title=Architecture,description=objdump machine name passed to -m"`
	Backend   string `yaml:"backend" json:"backend" jsonschema:"title=Backend,enum=objdump,enum=native,description=Disassembler implementation"`
	StdinPipe bool   `yaml:"stdinPipe" json:"stdinPipe" jsonschema:"title=Stdin pipe,description=Pipe instruction bytes to the tool instead of using a temp file. GNU objdump rejects piped input"`
	Color     string `yaml:"color" json:"color" jsonschema:"title=Color,enum=auto,enum=always,enum=never,description=Colorize disassembled lines"`
	Debug     bool   `yaml:"debug" json:"debug" jsonschema:"title=Debug,description=Enable debug logging"`
}

// Default returns the settings that reproduce the fixed objdump invocation.
func Default() Config {
	return Config{
		Objdump: disasm.DefaultObjdump,
		Arch:    disasm.DefaultArch,
		Backend: BackendObjdump,
		Color:   ColorAuto,
	}
}

// Load returns Default overlaid with the YAML file at path (if path is not
// empty) and then with the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("RVFILTER_OBJDUMP"); v != "" {
		c.Objdump = v
	}
	if v := os.Getenv("RVFILTER_ARCH"); v != "" {
		c.Arch = v
	}
	if v := os.Getenv("RVFILTER_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("RVFILTER_STDIN_PIPE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid RVFILTER_STDIN_PIPE %q: %w", v, err)
		}
		c.StdinPipe = b
	}
	return nil
}

// Validate checks enumerated fields.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendObjdump, BackendNative:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendObjdump, BackendNative)
	}
	switch c.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("unknown color mode %q (want auto, always or never)", c.Color)
	}
	if c.Backend == BackendObjdump && c.Objdump == "" {
		return fmt.Errorf("objdump command must not be empty")
	}
	return nil
}

// Disassembler builds the backend selected by c.
func (c Config) Disassembler() disasm.Disassembler {
	if c.Backend == BackendNative {
		return disasm.NewNative()
	}
	mode := disasm.InputTempFile
	if c.StdinPipe {
		mode = disasm.InputStdin
	}
	return disasm.NewObjdump(disasm.WithCommand(c.Objdump), disasm.WithInputMode(mode))
}
