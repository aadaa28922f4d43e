// Package config holds the command-line configuration of the binaries.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/1ureka/midisession/internal/responder"
)

// Config stores the parameters of the midisession responder.
type Config struct {
	ControlAddr string // UDP bind address of the control port
	DataAddr    string // UDP bind address of the data port
	Name        string // name announced in OK replies
	SSRC        uint32 // responder session id
	MonitorAddr string // websocket monitor address, empty to disable
	Debug       bool
}

// Default returns the configuration used when no flags are given.
func Default() Config {
	return Config{
		ControlAddr: responder.DefaultControlAddr,
		DataAddr:    responder.DefaultDataAddr,
		Name:        DefaultName(),
		SSRC:        responder.DefaultSSRC,
	}
}

// DefaultName derives the announced name from the host name, the way the
// Bonjour registration names the service.
func DefaultName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return responder.DefaultName
	}
	host = strings.TrimSuffix(host, ".local")
	return host + ".local"
}

// ParseSSRC parses a session id given in decimal or 0x-prefixed hex.
func ParseSSRC(s string) (uint32, error) {
	v, err := parseUint32("ssrc", s)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, errors.New("ssrc must not be zero")
	}
	return v, nil
}

// ParseToken parses an initiator token given in decimal or 0x-prefixed hex.
// Zero is a valid token.
func ParseToken(s string) (uint32, error) {
	return parseUint32("token", s)
}

func parseUint32(what, s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", what, s, err)
	}
	return uint32(v), nil
}

// Validate checks that both bind addresses parse and do not collide.
func (c Config) Validate() error {
	control, err := net.ResolveUDPAddr("udp", c.ControlAddr)
	if err != nil {
		return fmt.Errorf("invalid control address %q: %w", c.ControlAddr, err)
	}
	data, err := net.ResolveUDPAddr("udp", c.DataAddr)
	if err != nil {
		return fmt.Errorf("invalid data address %q: %w", c.DataAddr, err)
	}
	if control.Port != 0 && control.Port == data.Port && control.IP.Equal(data.IP) {
		return fmt.Errorf("control and data ports must differ (both %d)", control.Port)
	}
	if c.Name == "" {
		return errors.New("name must not be empty")
	}
	return nil
}

// Responder converts the configuration into a responder.Config.
func (c Config) Responder() responder.Config {
	return responder.Config{
		ControlAddr: c.ControlAddr,
		DataAddr:    c.DataAddr,
		SSRC:        c.SSRC,
		Name:        c.Name,
	}
}
