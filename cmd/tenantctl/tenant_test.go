package main

import "testing"

func TestParseKeyValues(t *testing.T) {
	got, err := parseKeyValues([]string{"format=csv", "year=2026", "note=a=b"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := map[string]string{"format": "csv", "year": "2026", "note": "a=b"}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("expected %s=%s, got %s", k, v, got[k])
		}
	}
}

func TestParseKeyValuesInvalid(t *testing.T) {
	for _, bad := range []string{"noequals", "=value"} {
		if _, err := parseKeyValues([]string{bad}); err == nil {
			t.Fatalf("expected an error for %q", bad)
		}
	}
}
