package crypto

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Well-known hardhat account #0.
const (
	hardhatKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	hardhatAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestEncryptDecryptKey(t *testing.T) {
	blob, err := EncryptKey(hardhatKey, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey() error = %v", err)
	}
	if !strings.Contains(string(blob), hardhatAddress) {
		t.Errorf("key file does not carry the wallet address: %s", blob)
	}

	got, err := DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptKey() error = %v", err)
	}
	if want := strings.TrimPrefix(hardhatKey, "0x"); got != want {
		t.Errorf("DecryptKey() = %s, want %s", got, want)
	}

	if _, err := DecryptKey(blob, "wrong"); err == nil {
		t.Error("DecryptKey() with wrong password succeeded")
	}
}

func TestEncryptKey_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		password string
	}{
		{"empty password", hardhatKey, ""},
		{"not hex", "0xzz", "pw"},
		{"short key", "0xabcd", "pw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncryptKey(tt.key, tt.password); err == nil {
				t.Errorf("EncryptKey(%q) error = nil, want error", tt.key)
			}
		})
	}
}

func TestLoadKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wallet.json")
	blob, err := EncryptKey(hardhatKey, "pw")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatal(err)
	}

	want := strings.TrimPrefix(hardhatKey, "0x")
	tests := []struct {
		name    string
		cfg     KeyConfig
		wantErr bool
	}{
		{name: "raw key", cfg: KeyConfig{RawPrivateKey: hardhatKey}},
		{name: "raw key wins", cfg: KeyConfig{RawPrivateKey: want, EncryptedKeyPath: "/does/not/exist"}},
		{name: "encrypted file", cfg: KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"}},
		{name: "missing file", cfg: KeyConfig{EncryptedKeyPath: filepath.Join(dir, "absent.json"), KeyPassword: "pw"}, wantErr: true},
		{name: "nothing configured", cfg: KeyConfig{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadKey(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("LoadKey() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadKey() error = %v", err)
			}
			if got != want {
				t.Errorf("LoadKey() = %s, want %s", got, want)
			}
		})
	}
}

func TestSigner(t *testing.T) {
	s, err := NewSigner(hardhatKey, 1337)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	if s.Address().Hex() != hardhatAddress {
		t.Errorf("Address() = %s, want %s", s.Address().Hex(), hardhatAddress)
	}

	value := big.NewInt(10_000_000_000_000_000)
	opts, err := s.TransactOpts(context.Background(), value)
	if err != nil {
		t.Fatalf("TransactOpts() error = %v", err)
	}
	if opts.From != s.Address() {
		t.Errorf("opts.From = %s, want %s", opts.From.Hex(), s.Address().Hex())
	}
	if opts.Value.Cmp(value) != 0 {
		t.Errorf("opts.Value = %s, want %s", opts.Value, value)
	}
	value.SetInt64(0)
	if opts.Value.Sign() == 0 {
		t.Error("opts.Value aliases the caller's big.Int")
	}
}
