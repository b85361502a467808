package security_test

import (
	"errors"
	"testing"

	"github.com/angelmondragon/ordersync-backend/pkg/config"
	"github.com/angelmondragon/ordersync-backend/pkg/security"
)

func testAdminConfig() config.AdminConfig {
	return config.AdminConfig{
		ArgonMemoryKB:    32768,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyAdminKey(t *testing.T) {
	hash, err := security.HashAdminKey("reload-me-please", testAdminConfig())
	if err != nil {
		t.Fatalf("HashAdminKey returned error: %v", err)
	}
	if hash == "" {
		t.Fatal("HashAdminKey returned empty string")
	}

	ok, err := security.VerifyAdminKey("reload-me-please", hash)
	if err != nil {
		t.Fatalf("VerifyAdminKey returned error for valid hash: %v", err)
	}
	if !ok {
		t.Fatal("VerifyAdminKey failed for the correct key")
	}

	ok, err = security.VerifyAdminKey("bogus-key", hash)
	if err != nil {
		t.Fatalf("VerifyAdminKey returned error for wrong key: %v", err)
	}
	if ok {
		t.Fatal("VerifyAdminKey returned true for incorrect key")
	}
}

func TestHashAdminKeyRejectsBlank(t *testing.T) {
	if _, err := security.HashAdminKey("   ", testAdminConfig()); err == nil {
		t.Fatal("expected blank key to be rejected")
	}
}

func TestVerifyAdminKeyMalformedHash(t *testing.T) {
	cases := []string{
		"not-a-hash",
		"$argon2i$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=0,p=0$c2FsdA$aGFzaA",
	}
	for _, encoded := range cases {
		if _, err := security.VerifyAdminKey("key", encoded); !errors.Is(err, security.ErrInvalidHash) {
			t.Fatalf("expected ErrInvalidHash for %q, got %v", encoded, err)
		}
	}
}

func TestGenerateAdminKey(t *testing.T) {
	key, err := security.GenerateAdminKey(32)
	if err != nil {
		t.Fatalf("GenerateAdminKey returned error: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("expected 32 characters, got %d", len(key))
	}
	if _, err := security.GenerateAdminKey(0); err == nil {
		t.Fatal("expected non-positive length to fail")
	}
}
