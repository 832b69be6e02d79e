package env

import "testing"

func TestGet(t *testing.T) {
	t.Setenv("HMSBILLING_TEST_VALUE", "  hello ")
	if got := Get("HMSBILLING_TEST_VALUE", "fallback"); got != "hello" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	t.Setenv("HMSBILLING_TEST_VALUE", "   ")
	if got := Get("HMSBILLING_TEST_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for blank value, got %q", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("HMSBILLING_TEST_FLAG", "YES")
	if !Bool("HMSBILLING_TEST_FLAG", false) {
		t.Fatal("expected YES to parse as true")
	}
	t.Setenv("HMSBILLING_TEST_FLAG", "off")
	if Bool("HMSBILLING_TEST_FLAG", true) {
		t.Fatal("expected off to parse as false")
	}
	t.Setenv("HMSBILLING_TEST_FLAG", "maybe")
	if !Bool("HMSBILLING_TEST_FLAG", true) {
		t.Fatal("expected fallback for unknown value")
	}
}
