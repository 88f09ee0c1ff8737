package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.TCP != want.TCP {
		t.Fatalf("TCP = %+v, want %+v", cfg.TCP, want.TCP)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mintcp.yml")
	body := []byte("tcp:\n  rt_timeout_ms: 250\n  recv_capacity: 32000\nadapter:\n  source: 10.0.0.1:5000\n  destination: 10.0.0.2:5001\n  loss_rate_up: 0.1\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TCP.RTTimeoutMs != 250 {
		t.Errorf("RTTimeoutMs = %d, want 250", cfg.TCP.RTTimeoutMs)
	}
	if cfg.TCP.RecvCapacity != 32000 {
		t.Errorf("RecvCapacity = %d, want 32000", cfg.TCP.RecvCapacity)
	}
	if cfg.Adapter.LossUp != 0.1 {
		t.Errorf("LossUp = %v, want 0.1", cfg.Adapter.LossUp)
	}

	src, err := cfg.SourceAddrPort()
	if err != nil {
		t.Fatalf("SourceAddrPort: %v", err)
	}
	if src.Port() != 5000 {
		t.Errorf("source port = %d, want 5000", src.Port())
	}
}

func TestLoadRejectsWorldWritableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mintcp.yml")
	if err := os.WriteFile(path, []byte("tcp:\n  rt_timeout_ms: 1\n"), 0o666); err != nil {
		t.Fatalf("write config: %v", err)
	}
	// WriteFile's mode is filtered by the umask; set it explicitly.
	if err := os.Chmod(path, 0o666); err != nil {
		t.Fatalf("chmod config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected Load to reject a world-writable config file")
	}
}

func TestToTCPConfigAppliesFixedISN(t *testing.T) {
	raw := uint32(42)
	f := File{TCP: TCPSettings{FixedISN: &raw}}
	cfg := f.ToTCPConfig()
	if cfg.FixedISN == nil {
		t.Fatal("expected FixedISN to be set")
	}
	if cfg.FixedISN.Raw() != raw {
		t.Errorf("FixedISN.Raw() = %d, want %d", cfg.FixedISN.Raw(), raw)
	}
	if cfg.InitialRTO == 0 || cfg.RecvCapacity == 0 || cfg.SendCapacity == 0 {
		t.Fatalf("unset fields should fall back to DefaultConfig, got %+v", cfg)
	}
}
