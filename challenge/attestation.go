package challenge

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// attestationIssuer identifies assertions produced by this package.
const attestationIssuer = "paymentsheet-device"

// Attestor signs short-lived device attestation assertions with a device key.
//
// Attestor is immutable after construction and safe for concurrent use.
type Attestor struct {
	// keyID identifies the registered device key ("kid" header)
	keyID string

	// appID is the application the device key was registered for
	appID string

	privateKey interface{}
	lifetime   time.Duration
	now        func() time.Time
}

// AssertionClaims are the claims of a device attestation assertion.
type AssertionClaims struct {
	*jwt.Claims
	// AppID is the application the assertion was made for
	AppID string `json:"app_id"`
}

// NewAttestor parses a PEM-encoded ECDSA or Ed25519 device key.
func NewAttestor(keyID, appID, privateKeyPEM string) (*Attestor, error) {
	if keyID == "" {
		return nil, fmt.Errorf("keyID must not be empty")
	}

	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block: invalid PEM format")
	}

	privateKey, err := x509.ParseECPrivateKey(block.Bytes)
	var key interface{} = privateKey
	if err != nil {
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
	}

	switch key.(type) {
	case *ecdsa.PrivateKey, ed25519.PrivateKey:
	default:
		return nil, fmt.Errorf("unsupported private key type: must be ECDSA or Ed25519")
	}

	return &Attestor{
		keyID:      keyID,
		appID:      appID,
		privateKey: key,
		lifetime:   time.Minute,
		now:        time.Now,
	}, nil
}

// Token implements TokenProvider. Each assertion carries a fresh id so the
// API can reject replays.
func (a *Attestor) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	alg := jose.EdDSA
	if _, ok := a.privateKey.(*ecdsa.PrivateKey); ok {
		alg = jose.ES256
	}

	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: alg, Key: a.privateKey},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", a.keyID),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create assertion signer: %w", err)
	}

	now := a.now()
	claims := &AssertionClaims{
		Claims: &jwt.Claims{
			ID:       uuid.NewString(),
			Issuer:   attestationIssuer,
			Subject:  a.keyID,
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(now.Add(a.lifetime)),
		},
		AppID: a.appID,
	}

	token, err := jwt.Signed(sig).Claims(claims).CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize assertion: %w", err)
	}
	return token, nil
}
