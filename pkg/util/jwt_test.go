package util

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestJWT_RoundTrip(t *testing.T) {
	token, err := GenerateJWT("u-1", "architect", "secret", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseJWT(token, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "u-1" || claims.Role != "architect" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestJWT_WrongSecret(t *testing.T) {
	token, _ := GenerateJWT("u-1", "client", "secret", time.Hour)
	if _, err := ParseJWT(token, "other"); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestJWT_Expired(t *testing.T) {
	token, _ := GenerateJWT("u-1", "client", "secret", -time.Minute)
	_, err := ParseJWT(token, "secret")
	if err == nil || !IsTokenExpired(err) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestJWT_MissingRole(t *testing.T) {
	token, _ := GenerateJWT("u-1", "", "secret", time.Hour)
	if _, err := ParseJWT(token, "secret"); err == nil {
		t.Fatal("expected malformed error for missing role")
	}
}

func TestExtractToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc": "abc",
		"bearer xyz": "xyz",
		"Basic abc":  "",
		"Bearer":     "",
		"":           "",
	}
	for header, want := range cases {
		r := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		if got := ExtractToken(r); got != want {
			t.Errorf("header %q: expected %q, got %q", header, want, got)
		}
	}
}
