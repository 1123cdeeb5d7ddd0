package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hereditary-eu/obda-studio/internal/platform/timeouts"
)

// defaultEndpoint is where the engine serves SPARQL when no endpoint is
// configured. The engine binds a fixed internal port; only the web tier
// is exposed.
const defaultEndpoint = "http://127.0.0.1:8080/sparql"

// Config describes the external engine process and its input files.
type Config struct {
	// Command is the engine executable path.
	Command string
	// MappingPath is the .obda mapping document handed to the engine.
	MappingPath string
	// TemplatePath is the editable .obda template the mapping page
	// offers before any fields are selected. Optional.
	TemplatePath string
	// OntologyPath is the ontology file (Turtle).
	OntologyPath string
	// PropertiesPath is the engine's JDBC/settings properties file.
	PropertiesPath string
	// LogPath collects the engine's stdout and stderr.
	LogPath string
	// PIDPath records the running engine PID across web-tier restarts.
	PIDPath string
	// WorkDir is the working directory for the engine process.
	WorkDir string
	// Endpoint is the engine's SPARQL endpoint URL.
	Endpoint string
	// StartDeadline caps how long Start waits for the endpoint to answer.
	StartDeadline time.Duration
}

// fileConfig is the engine.yaml wire shape.
type fileConfig struct {
	Command       string `yaml:"command"`
	Mapping       string `yaml:"mapping"`
	Template      string `yaml:"template"`
	Ontology      string `yaml:"ontology"`
	Properties    string `yaml:"properties"`
	Log           string `yaml:"log"`
	PIDFile       string `yaml:"pid_file"`
	WorkDir       string `yaml:"workdir"`
	Endpoint      string `yaml:"endpoint"`
	StartDeadline string `yaml:"start_deadline"`
}

// LoadConfig reads an engine.yaml description of the external engine.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read engine config: %w", err)
	}

	var parsed fileConfig
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return Config{}, fmt.Errorf("parse engine config: %w", err)
	}

	cfg := Config{
		Command:        strings.TrimSpace(parsed.Command),
		MappingPath:    strings.TrimSpace(parsed.Mapping),
		TemplatePath:   strings.TrimSpace(parsed.Template),
		OntologyPath:   strings.TrimSpace(parsed.Ontology),
		PropertiesPath: strings.TrimSpace(parsed.Properties),
		LogPath:        strings.TrimSpace(parsed.Log),
		PIDPath:        strings.TrimSpace(parsed.PIDFile),
		WorkDir:        strings.TrimSpace(parsed.WorkDir),
		Endpoint:       strings.TrimSpace(parsed.Endpoint),
	}
	if parsed.StartDeadline != "" {
		deadline, err := time.ParseDuration(parsed.StartDeadline)
		if err != nil {
			return Config{}, fmt.Errorf("parse start_deadline: %w", err)
		}
		cfg.StartDeadline = deadline
	}

	if cfg.Command == "" {
		return Config{}, fmt.Errorf("engine config requires a command")
	}
	if cfg.MappingPath == "" || cfg.OntologyPath == "" || cfg.PropertiesPath == "" {
		return Config{}, fmt.Errorf("engine config requires mapping, ontology and properties paths")
	}
	return cfg.withDefaults(), nil
}

// withDefaults fills derived paths and fallback values.
func (c Config) withDefaults() Config {
	if c.WorkDir == "" {
		c.WorkDir = filepath.Dir(c.Command)
	}
	if c.LogPath == "" {
		c.LogPath = filepath.Join(c.WorkDir, "engine.log")
	}
	if c.PIDPath == "" {
		c.PIDPath = filepath.Join(c.WorkDir, "engine.pid")
	}
	if c.Endpoint == "" {
		c.Endpoint = defaultEndpoint
	}
	if c.StartDeadline <= 0 {
		c.StartDeadline = timeouts.EngineStart
	}
	return c
}
