// Copyright 2024-2026 Aiku AI

package connector

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"text/template"

	up "go.mau.fi/util/configupgrade"
	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var ExampleConfig string

// Config holds the tomsg bridge configuration.
type Config struct {
	// HomeserverURL is the base URL of the Matrix homeserver, with a
	// trailing slash.
	HomeserverURL string `yaml:"homeserver_url"`
	// Domain is the server name ghost MXIDs and aliases are minted under.
	Domain string `yaml:"domain"`
	// ListenAddress is where the appservice transaction receiver listens.
	ListenAddress string `yaml:"listen_address"`
	// RegistrationPath is where the appservice registration file lives.
	RegistrationPath string `yaml:"registration_path"`
	// AppserviceURL is the URL the homeserver uses to reach this bridge.
	AppserviceURL string `yaml:"appservice_url"`

	// TomsgAddress is the host:port of the tomsg server.
	TomsgAddress        string `yaml:"tomsg_address"`
	DisplaynameTemplate string `yaml:"displayname_template"`
	// NickPrefix is a tomsg nickname prefix for echo prevention. Messages
	// from tomsg nicks starting with this prefix are treated as
	// bridge-managed and not relayed back to Matrix. Leave empty to disable
	// prefix-based filtering.
	NickPrefix string `yaml:"nick_prefix"`

	displaynameTemplate *template.Template `yaml:"-"`
}

// DisplaynameParams holds the parameters for rendering the displayname
// template.
type DisplaynameParams struct {
	Nick string
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

func (c *Config) PostProcess() error {
	var err error
	c.displaynameTemplate, err = template.New("displayname").Parse(c.DisplaynameTemplate)
	return err
}

// ParsedHomeserverURL parses the configured homeserver base URL.
func (c *Config) ParsedHomeserverURL() (*url.URL, error) {
	return url.Parse(c.HomeserverURL)
}

func upgradeConfig(helper up.Helper) {
	helper.Copy(up.Str, "homeserver_url")
	helper.Copy(up.Str, "domain")
	helper.Copy(up.Str, "listen_address")
	helper.Copy(up.Str, "registration_path")
	helper.Copy(up.Str, "appservice_url")
	helper.Copy(up.Str, "tomsg_address")
	helper.Copy(up.Str, "displayname_template")
	helper.Copy(up.Str, "nick_prefix")
}

// Upgrader returns the config upgrader used to migrate config files written
// against older versions of the example config.
func (c *Config) Upgrader() up.Upgrader {
	return &up.StructUpgrader{
		SimpleUpgrader: up.SimpleUpgrader(upgradeConfig),
		Blocks:         nil,
		Base:           ExampleConfig,
	}
}

// LoadConfig reads and post-processes a config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, fmt.Errorf("failed to post-process config: %w", err)
	}
	return &cfg, nil
}

// FormatDisplayname generates a display name from the template and params.
func (c *Config) FormatDisplayname(params DisplaynameParams) string {
	if c.displaynameTemplate == nil {
		return params.Nick
	}
	var buf []byte
	err := c.displaynameTemplate.Execute(
		(*templateBuffer)(&buf),
		params,
	)
	if err != nil {
		return params.Nick
	}
	return string(buf)
}

// templateBuffer is a simple io.Writer that appends to a byte slice.
type templateBuffer []byte

func (b *templateBuffer) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}
