// Package mcp holds the MCP servers configuration file contract and the
// secret scrubber applied to text leaving the process.
package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"polychat/internal/util"
)

const configFilename = "mcp_servers.json"

// Server is one MCP server entry, either stdio (command) or network (url).
type Server struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	URL           string            `json:"url,omitempty"`
	TransportType string            `json:"type,omitempty"` // "http" or "sse"
	Headers       map[string]string `json:"headers,omitempty"`

	Enabled          bool   `json:"enabled"`
	WorkingDirectory string `json:"working_directory,omitempty"`
}

func Stdio(command string, args ...string) Server {
	return Server{Command: command, Args: args, Enabled: true}
}

func HTTP(url string) Server {
	return Server{URL: url, TransportType: "http", Enabled: true}
}

func SSE(url string) Server {
	return Server{URL: url, TransportType: "sse", Enabled: true}
}

func (s Server) IsStdio() bool   { return s.Command != "" }
func (s Server) IsNetwork() bool { return s.URL != "" }

// Validate rejects entries that name neither transport or both.
func (s Server) Validate() error {
	switch {
	case s.Command == "" && s.URL == "":
		return errors.New("server needs either a command or a url")
	case s.Command != "" && s.URL != "":
		return errors.New("server cannot have both a command and a url")
	case s.URL != "" && s.TransportType != "" && s.TransportType != "http" && s.TransportType != "sse":
		return fmt.Errorf("unknown transport type %q", s.TransportType)
	}
	return nil
}

// Config is the whole mcp_servers.json file.
type Config struct {
	Servers       map[string]Server `json:"servers"`
	Enabled       bool              `json:"enabled"`
	DangerousMode bool              `json:"dangerous_mode_enabled"`

	path string
}

func defaultConfig(path string) *Config {
	return &Config{Servers: map[string]Server{}, Enabled: true, path: path}
}

// Load reads <dataDir>/mcp_servers.json. A missing or unparseable file means
// defaults.
func Load(dataDir string) *Config {
	path := filepath.Join(dataDir, configFilename)
	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("failed to read mcp config")
		}
		return defaultConfig(path)
	}
	c, err := Parse(raw)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to parse mcp config, using defaults")
		return defaultConfig(path)
	}
	c.path = path
	return c
}

// Parse decodes and validates a config document.
func Parse(raw []byte) (*Config, error) {
	c := Config{Enabled: true}
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	if c.Servers == nil {
		c.Servers = map[string]Server{}
	}
	for id, srv := range c.Servers {
		if err := srv.Validate(); err != nil {
			return nil, fmt.Errorf("server %q: %w", id, err)
		}
	}
	return &c, nil
}

func (c *Config) Save() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mcp config: %w", err)
	}
	if err := util.AtomicWriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write mcp config: %w", err)
	}
	return nil
}

func (c *Config) AddServer(id string, srv Server) error {
	if err := srv.Validate(); err != nil {
		return err
	}
	c.Servers[id] = srv
	return c.Save()
}

func (c *Config) RemoveServer(id string) error {
	if _, ok := c.Servers[id]; !ok {
		return fmt.Errorf("no such server %q", id)
	}
	delete(c.Servers, id)
	return c.Save()
}

// EnabledServers returns the ids of enabled servers, sorted, when the global
// switch is on.
func (c *Config) EnabledServers() []string {
	if !c.Enabled {
		return nil
	}
	var ids []string
	for id, srv := range c.Servers {
		if srv.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Sample is a starter configuration shown by `polychat mcp init`.
func Sample() *Config {
	fs := Stdio("npx", "-y", "@modelcontextprotocol/server-filesystem", ".")
	fs.Enabled = false
	return &Config{
		Servers: map[string]Server{
			"my-mcp-server": HTTP("http://localhost:8931"),
			"filesystem":    fs,
		},
		Enabled: true,
	}
}
