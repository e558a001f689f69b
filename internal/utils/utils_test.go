package utils

import (
	"testing"
	"time"
)

func TestUniqueStrings(t *testing.T) {
	got := UniqueStrings([]string{"story-1", "", "story-1-like", "story-1", "user-2-profile"})
	want := []string{"story-1", "story-1-like", "user-2-profile"}
	if len(got) != len(want) {
		t.Fatalf("UniqueStrings = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("UniqueStrings = %v, want %v", got, want)
		}
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("UTILS_TEST_BOOL", "yes")
	t.Setenv("UTILS_TEST_INT", "42")
	t.Setenv("UTILS_TEST_BAD_INT", "forty-two")
	t.Setenv("UTILS_TEST_FLOAT", "1.5")
	t.Setenv("UTILS_TEST_MS", "250")

	if !GetEnvAsBool("UTILS_TEST_BOOL", false) {
		t.Error("expected true for yes")
	}
	if GetEnvAsBool("UTILS_TEST_UNSET", true) != true {
		t.Error("expected default for unset bool")
	}
	if got := GetEnvAsInt("UTILS_TEST_INT", 0); got != 42 {
		t.Errorf("GetEnvAsInt = %d, want 42", got)
	}
	if got := GetEnvAsInt("UTILS_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("GetEnvAsInt with bad value = %d, want default 7", got)
	}
	if got := GetEnvAsFloat("UTILS_TEST_FLOAT", 0); got != 1.5 {
		t.Errorf("GetEnvAsFloat = %v, want 1.5", got)
	}
	if got := GetEnvAsMillis("UTILS_TEST_MS", time.Second); got != 250*time.Millisecond {
		t.Errorf("GetEnvAsMillis = %v, want 250ms", got)
	}
	if got := GetEnvAsSlice("UTILS_TEST_UNSET", []string{"a"}, ","); len(got) != 1 || got[0] != "a" {
		t.Errorf("GetEnvAsSlice default = %v", got)
	}
}
