package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// normalisePEM accepts keys pasted into .env files with literal "\n".
func normalisePEM(pem string) []byte {
	return []byte(strings.ReplaceAll(strings.TrimSpace(pem), `\n`, "\n"))
}

// LoadKeys parses an EC key pair. When both PEMs are empty an ephemeral
// P-256 key is generated and ephemeral is true.
func LoadKeys(privatePEM, publicPEM string) (priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey, ephemeral bool, err error) {
	if strings.TrimSpace(privatePEM) == "" && strings.TrimSpace(publicPEM) == "" {
		priv, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, nil, false, fmt.Errorf("generate signing key: %w", err)
		}
		return priv, &priv.PublicKey, true, nil
	}
	if strings.TrimSpace(privatePEM) == "" {
		return nil, nil, false, fmt.Errorf("JWT_PRIVATE_KEY is required when JWT_PUBLIC_KEY is set")
	}

	priv, err = jwt.ParseECPrivateKeyFromPEM(normalisePEM(privatePEM))
	if err != nil {
		return nil, nil, false, fmt.Errorf("parse JWT_PRIVATE_KEY: %w", err)
	}
	pub = &priv.PublicKey
	if strings.TrimSpace(publicPEM) != "" {
		pub, err = jwt.ParseECPublicKeyFromPEM(normalisePEM(publicPEM))
		if err != nil {
			return nil, nil, false, fmt.Errorf("parse JWT_PUBLIC_KEY: %w", err)
		}
		if !pub.Equal(&priv.PublicKey) {
			return nil, nil, false, fmt.Errorf("JWT_PUBLIC_KEY does not match JWT_PRIVATE_KEY")
		}
	}
	return priv, pub, false, nil
}
