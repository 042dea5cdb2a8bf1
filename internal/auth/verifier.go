// Package auth verifies bearer tokens and extracts the caller's identity.
package auth

import (
	"crypto"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// Verifier validates JWTs and extracts subject/role claims.
// Modes: dev (token is "subject:role", no crypto), hmac (HS256),
// jwks (RS256 keys fetched from a JWKS URL and cached).
type Verifier struct {
	Mode         string
	HMACSecret   []byte
	JWKSURL      string
	SubjectClaim string
	RoleClaim    string
	http         *http.Client
	mu           sync.RWMutex
	keys         keySet
	lastFetch    time.Time
	cacheTTL     time.Duration
}

type keySet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
	Alg string `json:"alg"`
}

// Principal identifies a caller. For role "vehicle" the subject is the
// AUV id the token is scoped to.
type Principal struct {
	Subject string
	Role    string // admin, operator, vehicle, viewer
}

func NewVerifierFromEnv() *Verifier {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("AUTH_MODE")))
	if mode == "" {
		mode = "dev"
	}
	return &Verifier{
		Mode:         mode,
		HMACSecret:   []byte(os.Getenv("AUTH_HMAC_SECRET")),
		JWKSURL:      os.Getenv("AUTH_JWKS_URL"),
		SubjectClaim: envOr("AUTH_SUBJECT_CLAIM", "sub"),
		RoleClaim:    envOr("AUTH_ROLE_CLAIM", "role"),
		http:         &http.Client{Timeout: 5 * time.Second},
		cacheTTL:     10 * time.Minute,
	}
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func (v *Verifier) Verify(token string) (Principal, error) {
	if v.Mode == "dev" {
		subject, role, ok := strings.Cut(token, ":")
		if !ok || subject == "" {
			return Principal{}, errors.New("invalid dev token; expected subject:role")
		}
		return Principal{Subject: subject, Role: strings.ToLower(role)}, nil
	}
	tok, err := parseCompact(token)
	if err != nil {
		return Principal{}, err
	}
	switch v.Mode {
	case "hmac":
		err = v.checkHS256(tok)
	case "jwks":
		err = v.checkRS256(tok)
	default:
		err = errors.New("unsupported auth mode")
	}
	if err != nil {
		return Principal{}, err
	}
	return v.principalFrom(tok.claims)
}

// compactToken is a decoded JWS compact serialization. signed holds the
// exact bytes the signature covers.
type compactToken struct {
	alg    string
	kid    string
	claims map[string]any
	signed []byte
	sig    []byte
}

func parseCompact(raw string) (compactToken, error) {
	var tok compactToken
	segs := strings.Split(raw, ".")
	if len(segs) != 3 {
		return tok, errors.New("invalid JWT")
	}
	var head struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if err := decodeSegment(segs[0], &head); err != nil {
		return tok, err
	}
	if err := decodeSegment(segs[1], &tok.claims); err != nil {
		return tok, err
	}
	sig, err := base64.RawURLEncoding.DecodeString(segs[2])
	if err != nil {
		return tok, err
	}
	tok.alg = head.Alg
	tok.kid = head.Kid
	tok.signed = []byte(segs[0] + "." + segs[1])
	tok.sig = sig
	return tok, nil
}

func decodeSegment(seg string, dst any) error {
	b, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func (v *Verifier) checkHS256(tok compactToken) error {
	if tok.alg != "HS256" {
		return errors.New("unsupported alg for hmac")
	}
	mac := hmac.New(sha256.New, v.HMACSecret)
	mac.Write(tok.signed)
	if !hmac.Equal(mac.Sum(nil), tok.sig) {
		return errors.New("bad signature")
	}
	return nil
}

func (v *Verifier) checkRS256(tok compactToken) error {
	if tok.alg != "RS256" {
		return errors.New("unsupported alg for jwks")
	}
	pub, err := v.rsaKey(tok.kid)
	if err != nil {
		return err
	}
	digest := sha256.Sum256(tok.signed)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], tok.sig); err != nil {
		return errors.New("bad signature")
	}
	return nil
}

func (v *Verifier) principalFrom(claims map[string]any) (Principal, error) {
	if exp, ok := claims["exp"].(float64); ok && time.Now().Unix() > int64(exp) {
		return Principal{}, errors.New("token expired")
	}
	subject, _ := claims[v.SubjectClaim].(string)
	if subject == "" {
		return Principal{}, errors.New("missing subject claim")
	}
	role, _ := claims[v.RoleClaim].(string)
	if role == "" {
		role = "viewer"
	}
	return Principal{Subject: subject, Role: strings.ToLower(role)}, nil
}

// rsaKey returns the public key for kid, refreshing the cached JWKS when
// it is empty or past its TTL.
func (v *Verifier) rsaKey(kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	cached := v.keys
	stale := time.Since(v.lastFetch) > v.cacheTTL
	v.mu.RUnlock()
	if len(cached.Keys) == 0 || stale {
		if err := v.refreshKeys(); err != nil {
			return nil, err
		}
		v.mu.RLock()
		cached = v.keys
		v.mu.RUnlock()
	}
	for _, k := range cached.Keys {
		if k.Kid == kid && strings.EqualFold(k.Kty, "RSA") {
			return k.publicKey()
		}
	}
	return nil, errors.New("kid not found in JWKS")
}

// publicKey builds an rsa.PublicKey from the JWK's base64url modulus and
// exponent.
func (k jwk) publicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() <= 0 {
		return nil, errors.New("bad RSA exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: int(e.Int64())}, nil
}

func (v *Verifier) refreshKeys() error {
	if v.JWKSURL == "" {
		return errors.New("AUTH_JWKS_URL not set")
	}
	resp, err := v.http.Get(v.JWKSURL)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks fetch: status %d", resp.StatusCode)
	}
	var ks keySet
	if err := json.NewDecoder(resp.Body).Decode(&ks); err != nil {
		return err
	}
	v.mu.Lock()
	v.keys = ks
	v.lastFetch = time.Now()
	v.mu.Unlock()
	return nil
}
