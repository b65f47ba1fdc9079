package vpn

import (
	"errors"
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"

	"rentradar/config"
)

var (
	ErrNotConnected = errors.New("VPN not connected")
	ErrConnectFail  = errors.New("failed to connect VPN")
)

// ExpressVPN shells out to expressvpnctl. Rotating the exit region between
// search areas complements browser profile resets against fingerprinting.
type ExpressVPN struct {
	cfg config.VPNConfig

	mu   sync.Mutex
	next int
}

func New(cfg config.VPNConfig) *ExpressVPN {
	return &ExpressVPN{cfg: cfg}
}

func (v *ExpressVPN) IsConnected() bool {
	out, err := exec.Command("expressvpnctl", "status").Output()
	if err != nil {
		return false
	}
	status := strings.ToLower(string(out))
	return strings.Contains(status, "connected") && !strings.Contains(status, "disconnected")
}

// Rotate disconnects and reconnects to the next configured region,
// round-robin. With no regions configured it only ensures a connection.
func (v *ExpressVPN) Rotate() error {
	if !v.cfg.AutoConnect {
		return nil
	}
	if len(v.cfg.Regions) == 0 {
		return v.EnsureConnected()
	}

	v.mu.Lock()
	region := v.cfg.Regions[v.next%len(v.cfg.Regions)]
	v.next++
	v.mu.Unlock()

	log.Printf("VPN: rotating to region %s", region)
	if v.IsConnected() {
		if err := v.Disconnect(); err != nil {
			log.Printf("VPN: disconnect failed: %v", err)
		}
	}
	return v.connect(region)
}

// EnsureConnected connects to the first configured region (or the smart
// location) when no tunnel is up.
func (v *ExpressVPN) EnsureConnected() error {
	if v.IsConnected() {
		return nil
	}
	if !v.cfg.AutoConnect {
		return ErrNotConnected
	}

	region := "smart"
	if len(v.cfg.Regions) > 0 {
		region = v.cfg.Regions[0]
	}
	return v.connect(region)
}

func (v *ExpressVPN) connect(region string) error {
	if err := exec.Command("expressvpnctl", "connect", region).Run(); err != nil {
		return ErrConnectFail
	}

	for i := 0; i < 30; i++ {
		time.Sleep(time.Second)
		if v.IsConnected() {
			return nil
		}
	}
	return ErrConnectFail
}

func (v *ExpressVPN) Disconnect() error {
	return exec.Command("expressvpnctl", "disconnect").Run()
}

func (v *ExpressVPN) Status() (string, error) {
	out, err := exec.Command("expressvpnctl", "status").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
