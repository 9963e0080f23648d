package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"taskdesk/internal/acl"
)

// Config models taskdesk.yml: the role catalog, seed statuses and the
// outbound webhooks. Roles name their ACL tokens explicitly; the admin
// flag is the universal override and needs no tokens.
type Config struct {
	Server struct {
		Addr      string `yaml:"addr"`
		BasePath  string `yaml:"base_path"`
		JWTSecret string `yaml:"jwt_secret"`
		PublicURL string `yaml:"public_url"`
	} `yaml:"server"`
	Roles    map[string]RoleConfig `yaml:"roles"`
	Statuses []StatusConfig        `yaml:"statuses"`
	Webhooks []WebhookConfig       `yaml:"webhooks"`
}

type RoleConfig struct {
	Title string   `yaml:"title"`
	Admin bool     `yaml:"admin"`
	Acl   []string `yaml:"acl"`
	Order int      `yaml:"order"`
}

type StatusConfig struct {
	Title   string `yaml:"title"`
	Color   string `yaml:"color"`
	Default bool   `yaml:"default"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskdesk.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run td init first", Path(workspace))
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config when the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures the role catalog is well formed and every ACL token
// belongs to the role-level registry. Tokens typoed in the config would
// otherwise never grant anything.
func (c *Config) Validate() error {
	if len(c.Roles) == 0 {
		return fmt.Errorf("config.roles is required")
	}
	admins := 0
	for name, role := range c.Roles {
		if name == "" {
			return fmt.Errorf("config.roles contains an empty role name")
		}
		if role.Admin {
			admins++
			if len(role.Acl) > 0 {
				return fmt.Errorf("role %s: admin roles carry no ACL tokens", name)
			}
			continue
		}
		for _, token := range role.Acl {
			if !acl.ValidRoleToken(token) {
				return fmt.Errorf("role %s: unknown ACL token %s", name, token)
			}
		}
	}
	if admins == 0 {
		return fmt.Errorf("config.roles must include an admin role")
	}
	defaults := 0
	for _, s := range c.Statuses {
		if s.Title == "" {
			return fmt.Errorf("config.statuses contains an entry without a title")
		}
		if s.Default {
			defaults++
		}
	}
	if len(c.Statuses) > 0 && defaults != 1 {
		return fmt.Errorf("config.statuses must mark exactly one default status")
	}
	return nil
}

// Default returns the built-in config.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns the default config YAML for td init.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `server:
  addr: ":8080"
  base_path: /v1
  jwt_secret: ""
  public_url: http://localhost:8080

roles:
  admin:
    title: Administrator
    admin: true
    order: 0

  manager:
    title: Manager
    order: 1
    acl:
      - LIST_COMPANIES
      - VIEW_COMPANY
      - VIEW_PROJECT
      - CREATE_PROJECT
      - UPDATE_PROJECT
      - CREATE_TASK
      - LIST_ALL_TASKS
      - SHARE_FILTERS
      - SHARE_TAGS
      - LIST_STATUSES
      - VIEW_STATUS
      - LIST_USERS
      - VIEW_USER
      - LIST_COMPANY_ATTRIBUTES
      - VIEW_COMPANY_ATTRIBUTE
      - LIST_TASK_ATTRIBUTES
      - VIEW_TASK_ATTRIBUTE

  agent:
    title: Agent
    order: 2
    acl:
      - CREATE_TASK
      - SHARE_FILTERS
      - LIST_STATUSES
      - VIEW_STATUS
      - VIEW_USER

  user:
    title: User
    order: 3
    acl:
      - LIST_STATUSES

statuses:
  - title: New
    color: "#2196f3"
    default: true
  - title: In progress
    color: "#ff9800"
  - title: Waiting
    color: "#9e9e9e"
  - title: Closed
    color: "#4caf50"

webhooks: []
`
