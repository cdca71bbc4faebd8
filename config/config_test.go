package config

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.ResolvedProfile().Name != ProfileStarkEx {
		t.Fatalf("ResolvedProfile = %v, want stark_ex", cfg.ResolvedProfile().Name)
	}
}

func TestLoadFlatDocument(t *testing.T) {
	doc := `
# committee node config
[gateway]
availability_gateway_endpoint = "https://gateway.example.com"
certificates_path = "/etc/dac/certs"
private_key_path = "/etc/dac/key.hex"
storage = "{adapter: memory}"

[committee]
polling_interval_seconds = 10
max_delta_size = 2048

[tree]
height = 31
profile = "stark_ex"
`
	cfg, err := Load([]byte(doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AvailabilityGatewayEndpoint != "https://gateway.example.com" {
		t.Fatalf("endpoint = %q", cfg.AvailabilityGatewayEndpoint)
	}
	if cfg.PollingIntervalSeconds != 10 {
		t.Fatalf("polling interval = %d", cfg.PollingIntervalSeconds)
	}
	if cfg.Storage.Adapter != "memory" {
		t.Fatalf("storage adapter = %q", cfg.Storage.Adapter)
	}
	if cfg.TreeHeight != 31 || cfg.Profile != ProfileStarkEx {
		t.Fatalf("tree height/profile = %d/%s", cfg.TreeHeight, cfg.Profile)
	}
}

func TestLoadPerpetualProfile(t *testing.T) {
	doc := `
[gateway]
availability_gateway_endpoint = "https://gateway.example.com"
certificates_path = "/etc/dac/certs"
private_key_path = "/etc/dac/key.hex"

[committee]
polling_interval_seconds = 5
max_delta_size = 1024

[tree]
height = 64
profile = "perpetual"
`
	cfg, err := Load([]byte(doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	trees := cfg.ResolvedProfile().Trees()
	if len(trees) != 2 {
		t.Fatalf("perpetual profile should declare 2 trees, got %d", len(trees))
	}
	if trees[0].Name != "vault" || trees[1].Name != "order" {
		t.Fatalf("unexpected tree order: %+v", trees)
	}
}

func TestLoadRejectsMismatchedHeightAndProfile(t *testing.T) {
	doc := `
[gateway]
availability_gateway_endpoint = "https://gateway.example.com"
certificates_path = "/etc/dac/certs"
private_key_path = "/etc/dac/key.hex"

[committee]
polling_interval_seconds = 5
max_delta_size = 1024

[tree]
height = 31
profile = "perpetual"
`
	_, err := Load([]byte(doc))
	if err == nil {
		t.Fatal("expected error for tree_height/profile mismatch")
	}
	if !strings.Contains(err.Error(), "does not match profile") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsUnknownProfile(t *testing.T) {
	doc := `
[gateway]
availability_gateway_endpoint = "https://gateway.example.com"
certificates_path = "/etc/dac/certs"
private_key_path = "/etc/dac/key.hex"

[committee]
polling_interval_seconds = 5
max_delta_size = 1024

[tree]
height = 12
profile = "not_a_real_profile"
`
	_, err := Load([]byte(doc))
	if err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

func TestLoadRejectsUnknownSection(t *testing.T) {
	doc := `
[bogus]
key = "value"
`
	_, err := Load([]byte(doc))
	if err == nil {
		t.Fatal("expected error for unknown section")
	}
}

func TestResolveProfileUnknown(t *testing.T) {
	_, err := ResolveProfile(ProfileName("nope"))
	if err == nil {
		t.Fatal("expected error")
	}
	var target *ErrUnknownProfile
	if !errors.As(err, &target) {
		t.Fatalf("expected *ErrUnknownProfile, got %T", err)
	}
}
