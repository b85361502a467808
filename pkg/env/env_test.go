package env

import "testing"

func TestGetFallsBack(t *testing.T) {
	t.Setenv("ORDERSYNC_TEST_VALUE", "  ")
	t.Setenv("TEST_VALUE", "")
	if got := Get("TEST_VALUE", "json"); got != "json" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("TEST_VALUE", "console")
	if got := Get("TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected bare key value, got %q", got)
	}
}

func TestGetPrefersPrefixedKey(t *testing.T) {
	t.Setenv("TEST_VALUE", "console")
	t.Setenv("ORDERSYNC_TEST_VALUE", "json")
	if got := Get("TEST_VALUE", ""); got != "json" {
		t.Fatalf("expected prefixed value, got %q", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("ORDERSYNC_TEST_FLAG", "true")
	if !Bool("TEST_FLAG", false) {
		t.Fatal("expected true")
	}
	t.Setenv("ORDERSYNC_TEST_FLAG", "nope")
	if !Bool("TEST_FLAG", true) {
		t.Fatal("malformed value should fall back")
	}
}
