package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/interbank/internal/domain"
)

const (
	privateKeyFile = "private.pem"
	publicKeyFile  = "public.pem"
	rsaKeyBits     = 2048
)

// Claims is the wire form of a settlement payload. There is deliberately no
// transfer identifier claim: the receiving side cannot deduplicate
// re-delivered tokens.
type Claims struct {
	SourceAccount      string `json:"sourceAccount"`
	DestinationAccount string `json:"destinationAccount"`
	Currency           string `json:"currency"`
	Amount             string `json:"amount"`
	Explanation        string `json:"explanation,omitempty"`
	SenderName         string `json:"senderName,omitempty"`
	jwt.RegisteredClaims
}

// Payload converts claims back to the domain payload.
func (c *Claims) Payload() (domain.SettlementPayload, error) {
	amount, err := decimal.NewFromString(c.Amount)
	if err != nil {
		return domain.SettlementPayload{}, fmt.Errorf("%w: bad amount %q", domain.ErrValidation, c.Amount)
	}

	return domain.SettlementPayload{
		SourceAccount:      c.SourceAccount,
		DestinationAccount: c.DestinationAccount,
		Currency:           c.Currency,
		Amount:             amount,
		Explanation:        c.Explanation,
		SenderName:         c.SenderName,
	}, nil
}

// JWK is a single public verification key in JWKS form.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// KeySet is the institution's published key set document.
type KeySet struct {
	Keys []JWK `json:"keys"`
}

// ByID returns the key with the given identifier.
func (s KeySet) ByID(kid string) (JWK, bool) {
	for _, k := range s.Keys {
		if k.Kid == kid {
			return k, true
		}
	}

	return JWK{}, false
}

// Custodian owns the institution's RSA signing key pair. The pair is
// generated on first use, persisted under dir, and never regenerated while a
// persisted pair exists: silent regeneration would invalidate signatures
// counterparties are still verifying against cached key sets.
type Custodian struct {
	mu     sync.RWMutex
	key    *rsa.PrivateKey
	kid    string
	issuer string
	logger zerolog.Logger
}

// NewCustodian loads the key pair from dir, generating and persisting a
// fresh one if none exists. Returns domain.ErrKeyUnavailable when the pair
// is missing and cannot be created.
func NewCustodian(dir, issuer string, logger zerolog.Logger) (*Custodian, error) {
	c := &Custodian{
		issuer: issuer,
		logger: logger.With().Str("component", "keys").Logger(),
	}

	key, err := loadPrivateKey(filepath.Join(dir, privateKeyFile))
	switch {
	case err == nil:
		c.logger.Info().Msg("loaded existing signing key pair")
	case os.IsNotExist(err):
		key, err = generateKeyPair(dir)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrKeyUnavailable, err)
		}

		c.logger.Info().Msg("generated new signing key pair")
	default:
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyUnavailable, err)
	}

	c.key = key
	c.kid = keyID(&key.PublicKey)

	return c, nil
}

// Sign serializes the payload into claims and returns a signed RS256 token
// carrying the key identifier in its header.
func (c *Custodian) Sign(payload domain.SettlementPayload) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.key == nil {
		return "", domain.ErrKeyUnavailable
	}

	claims := Claims{
		SourceAccount:      payload.SourceAccount,
		DestinationAccount: payload.DestinationAccount,
		Currency:           payload.Currency,
		Amount:             payload.Amount.String(),
		Explanation:        payload.Explanation,
		SenderName:         payload.SenderName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   c.issuer,
			IssuedAt: jwt.NewNumericDate(time.Now().UTC()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = c.kid

	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrKeyUnavailable, err)
	}

	return signed, nil
}

// PublicKeySet returns the institution's current public verification
// material. Stable across calls until the key is rotated on disk and the
// process restarted.
func (c *Custodian) PublicKeySet() KeySet {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return KeySet{Keys: []JWK{publicKeyToJWK(&c.key.PublicKey, c.kid)}}
}

// KeyID returns the identifier of the active signing key.
func (c *Custodian) KeyID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.kid
}

// ParseUnverified decodes a signed token's structure without trusting it,
// returning the claimed payload and the key identifier from the header.
func ParseUnverified(token string) (domain.SettlementPayload, string, error) {
	claims := &Claims{}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return domain.SettlementPayload{}, "", fmt.Errorf("%w: malformed token", domain.ErrValidation)
	}

	kid, _ := parsed.Header["kid"].(string)
	if kid == "" {
		return domain.SettlementPayload{}, "", fmt.Errorf("%w: missing kid header", domain.ErrValidation)
	}

	payload, err := claims.Payload()
	if err != nil {
		return domain.SettlementPayload{}, "", err
	}

	return payload, kid, nil
}

// Verify checks the token signature against the given public key and
// returns the authenticated payload.
func Verify(token string, key *rsa.PublicKey) (domain.SettlementPayload, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return key, nil
	})
	if err != nil || !parsed.Valid {
		return domain.SettlementPayload{}, domain.ErrAuthenticationFailed
	}

	return claims.Payload()
}

// PublicKeyFromJWK reconstructs an RSA public key from a key set entry.
func PublicKeyFromJWK(k JWK) (*rsa.PublicKey, error) {
	if k.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type %q", k.Kty)
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

func publicKeyToJWK(pub *rsa.PublicKey, kid string) JWK {
	return JWK{
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		Kid: kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// keyID derives a stable key identifier from the public key fingerprint.
func keyID(pub *rsa.PublicKey) string {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return ""
	}

	sum := sha256.Sum256(der)

	return hex.EncodeToString(sum[:])[:16]
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}

	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

func generateKeyPair(dir string) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	// O_EXCL guards against clobbering a pair written by a concurrent start.
	f, err := os.OpenFile(filepath.Join(dir, privateKeyFile), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, err
	}

	if _, err := f.Write(privPEM); err != nil {
		f.Close()
		return nil, err
	}

	if err := f.Close(); err != nil {
		return nil, err
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, err
	}

	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile(filepath.Join(dir, publicKeyFile), pubPEM, 0o644); err != nil {
		return nil, err
	}

	return key, nil
}
