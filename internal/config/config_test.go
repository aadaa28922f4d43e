package config

import (
	"strings"
	"testing"

	"github.com/1ureka/midisession/internal/responder"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.ControlAddr != ":5004" || cfg.DataAddr != ":5005" {
		t.Errorf("default ports = %s/%s, want :5004/:5005", cfg.ControlAddr, cfg.DataAddr)
	}
	if cfg.SSRC != responder.DefaultSSRC {
		t.Errorf("default ssrc = 0x%08X", cfg.SSRC)
	}
	if !strings.HasSuffix(cfg.Name, ".local") {
		t.Errorf("default name %q should end in .local", cfg.Name)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestParseSSRC(t *testing.T) {
	testCases := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"0xDEADBEEF", 0xDEADBEEF, false},
		{"1234", 1234, false},
		{" 0x10 ", 16, false},
		{"0", 0, true},
		{"0x1FFFFFFFF", 0, true},
		{"beef", 0, true},
		{"", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseSSRC(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseSSRC(%q) = %d, want error", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSSRC(%q) failed: %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ParseSSRC(%q) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseToken(t *testing.T) {
	testCases := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"0", 0, false},
		{"0xFFFFFFFF", 0xFFFFFFFF, false},
		{"42", 42, false},
		{"4294967296", 0, true},
		{"0x1FFFFFFFF", 0, true},
		{"-1", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseToken(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseToken(%q) = %d, want error", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseToken(%q) failed: %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ParseToken(%q) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"same port", func(c *Config) { c.DataAddr = c.ControlAddr }, true},
		{"same port different hosts", func(c *Config) {
			c.ControlAddr = "127.0.0.1:5004"
			c.DataAddr = "127.0.0.2:5004"
		}, false},
		{"ephemeral ports", func(c *Config) {
			c.ControlAddr = "127.0.0.1:0"
			c.DataAddr = "127.0.0.1:0"
		}, false},
		{"bad control port", func(c *Config) { c.ControlAddr = ":notaport" }, true},
		{"bad data address", func(c *Config) { c.DataAddr = "no-port" }, true},
		{"empty name", func(c *Config) { c.Name = "" }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestResponderConfig(t *testing.T) {
	cfg := Config{ControlAddr: ":6004", DataAddr: ":6005", Name: "x.local", SSRC: 7}
	rc := cfg.Responder()
	if rc.ControlAddr != ":6004" || rc.DataAddr != ":6005" || rc.Name != "x.local" || rc.SSRC != 7 {
		t.Errorf("Responder() = %+v", rc)
	}
}
