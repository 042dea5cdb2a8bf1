package auth

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func b64url(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func hs256Token(t *testing.T, secret string, claims map[string]any) string {
	t.Helper()
	hdr, _ := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	pay, _ := json.Marshal(claims)
	signing := b64url(hdr) + "." + b64url(pay)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signing))
	return signing + "." + b64url(mac.Sum(nil))
}

func TestVerifyDevMode(t *testing.T) {
	v := &Verifier{Mode: "dev"}
	p, err := v.Verify("ops-1:Admin")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.Subject != "ops-1" || p.Role != "admin" {
		t.Fatalf("principal = %+v", p)
	}
	if _, err := v.Verify("no-role"); err == nil {
		t.Fatal("expected error for token without role")
	}
}

func TestVerifyHS256(t *testing.T) {
	v := &Verifier{Mode: "hmac", HMACSecret: []byte("k1"), SubjectClaim: "sub", RoleClaim: "role"}

	tok := hs256Token(t, "k1", map[string]any{"sub": "auv-007", "role": "Vehicle"})
	p, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.Subject != "auv-007" || p.Role != "vehicle" {
		t.Fatalf("principal = %+v", p)
	}

	if _, err := v.Verify(tok + "x"); err == nil {
		t.Fatal("tampered token accepted")
	}
	if _, err := v.Verify(hs256Token(t, "other", map[string]any{"sub": "x", "role": "admin"})); err == nil {
		t.Fatal("wrong key accepted")
	}
	if _, err := v.Verify(hs256Token(t, "k1", map[string]any{"role": "admin"})); err == nil {
		t.Fatal("missing subject accepted")
	}
}

func TestVerifyDefaultsRoleToViewer(t *testing.T) {
	v := &Verifier{Mode: "hmac", HMACSecret: []byte("k1"), SubjectClaim: "sub", RoleClaim: "role"}
	p, err := v.Verify(hs256Token(t, "k1", map[string]any{"sub": "ops-2"}))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.Role != "viewer" {
		t.Fatalf("role = %q, want viewer", p.Role)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := &Verifier{Mode: "hmac", HMACSecret: []byte("k1"), SubjectClaim: "sub", RoleClaim: "role"}
	tok := hs256Token(t, "k1", map[string]any{"sub": "ops-1", "role": "admin", "exp": time.Now().Add(-time.Minute).Unix()})
	if _, err := v.Verify(tok); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestVerifyJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	jwksBody, _ := json.Marshal(map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "k-2026",
			"alg": "RS256",
			"n":   b64url(key.N.Bytes()),
			"e":   b64url([]byte{0x01, 0x00, 0x01}),
		}},
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jwksBody)
	}))
	defer srv.Close()

	hdr, _ := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT", "kid": "k-2026"})
	pay, _ := json.Marshal(map[string]any{"sub": "ops-9", "role": "operator"})
	signing := b64url(hdr) + "." + b64url(pay)
	h := sha256.Sum256([]byte(signing))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, h[:])
	if err != nil {
		t.Fatal(err)
	}
	tok := signing + "." + b64url(sig)

	v := &Verifier{
		Mode: "jwks", JWKSURL: srv.URL,
		SubjectClaim: "sub", RoleClaim: "role",
		http: srv.Client(), cacheTTL: time.Minute,
	}
	p, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.Subject != "ops-9" || p.Role != "operator" {
		t.Fatalf("principal = %+v", p)
	}

	// unknown kid
	badHdr, _ := json.Marshal(map[string]string{"alg": "RS256", "kid": "other"})
	badTok := fmt.Sprintf("%s.%s.%s", b64url(badHdr), b64url(pay), b64url(sig))
	if _, err := v.Verify(badTok); err == nil {
		t.Fatal("unknown kid accepted")
	}
}
