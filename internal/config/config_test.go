package config

import (
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if _, ok := cfg.Roles["admin"]; !ok {
		t.Fatalf("default config must carry an admin role")
	}
}

func TestGenerateDefaultRoundTrips(t *testing.T) {
	cfg, err := FromYAML([]byte(GenerateDefault()))
	if err != nil {
		t.Fatalf("generated template must parse: %v", err)
	}
	if cfg.Server.BasePath != "/v1" {
		t.Fatalf("base path: %q", cfg.Server.BasePath)
	}
}

func TestUnknownAclTokenRejected(t *testing.T) {
	yml := `
roles:
  admin:
    admin: true
  agent:
    acl: [DO_EVERYTHING]
`
	_, err := FromYAML([]byte(yml))
	if err == nil || !strings.Contains(err.Error(), "DO_EVERYTHING") {
		t.Fatalf("expected unknown token error, got %v", err)
	}
}

func TestAdminRoleRequired(t *testing.T) {
	yml := `
roles:
  agent:
    acl: [CREATE_TASK]
`
	if _, err := FromYAML([]byte(yml)); err == nil {
		t.Fatalf("config without an admin role must be rejected")
	}
}

func TestExactlyOneDefaultStatus(t *testing.T) {
	yml := `
roles:
  admin:
    admin: true
statuses:
  - title: New
  - title: Closed
`
	if _, err := FromYAML([]byte(yml)); err == nil {
		t.Fatalf("statuses without a default must be rejected")
	}
}
