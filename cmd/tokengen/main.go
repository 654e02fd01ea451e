// Package main provides a CLI tool for generating dev keypairs and test
// bearer tokens for the flock API. Tokens minted here are for local
// development only; production tokens come from the identity provider.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultIssuer   = "https://flock-dev.example.com/"
	defaultSubject  = "auth0|dev-user"
	defaultScopes   = "openid,email"
	defaultTokenTTL = 15 * time.Minute
	rsaKeyBits      = 2048
)

type tokenOutput struct {
	Token     string         `json:"token"`
	Type      string         `json:"type"`
	ExpiresIn string         `json:"expires_in"`
	Claims    map[string]any `json:"claims,omitempty"`
}

func main() {
	keysCmd := flag.NewFlagSet("keys", flag.ExitOnError)
	tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)

	// Keypair flags
	keysDir := keysCmd.String("out", ".", "Directory to write idp_dev.pem and idp_dev.pub.pem")

	// Token flags
	tokenKey := tokenCmd.String("key", "idp_dev.pem", "Path to RSA private key PEM")
	tokenIssuer := tokenCmd.String("issuer", defaultIssuer, "iss claim; must match IDP_ISSUER")
	tokenSubject := tokenCmd.String("subject", defaultSubject, "sub claim")
	tokenEmail := tokenCmd.String("email", "dev@example.com", "email claim")
	tokenScopes := tokenCmd.String("scopes", defaultScopes, "Comma-separated scopes")
	tokenTTL := tokenCmd.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	tokenJSON := tokenCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "keys":
		keysCmd.Parse(os.Args[2:])
		generateKeys(*keysDir)
	case "token":
		tokenCmd.Parse(os.Args[2:])
		generateToken(*tokenKey, *tokenIssuer, *tokenSubject, *tokenEmail, *tokenScopes, *tokenTTL, *tokenJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Generate dev keypairs and test tokens for the flock API

WARNING: Tokens minted here only verify against the matching generated
         public key. Point IDP_PUBLIC_KEY at idp_dev.pub.pem for local runs.

Usage:
  tokengen <command> [flags]

Commands:
  keys      Generate an RSA keypair (idp_dev.pem, idp_dev.pub.pem)
  token     Mint a signed bearer token from a private key

Examples:
  # Generate a dev keypair in the current directory
  tokengen keys

  # Mint a token for the default dev subject
  tokengen token

  # Mint a token for a specific subject with a longer TTL
  tokengen token -subject "auth0|abc123" -ttl 1h -json`)
}

func generateKeys(dir string) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		fatal("generate key: %v", err)
	}

	privPath := dir + "/idp_dev.pem"
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		fatal("write private key: %v", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		fatal("marshal public key: %v", err)
	}
	pubPath := dir + "/idp_dev.pub.pem"
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		fatal("write public key: %v", err)
	}

	fmt.Printf("wrote %s and %s\n", privPath, pubPath)
}

func generateToken(keyPath, issuer, subject, email, scopes string, ttl time.Duration, asJSON bool) {
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		fatal("read private key: %v (run 'tokengen keys' first)", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(raw)
	if err != nil {
		fatal("parse private key: %v", err)
	}

	now := time.Now()
	scope := strings.Join(strings.Split(scopes, ","), " ")
	claims := jwt.MapClaims{
		"iss":   issuer,
		"sub":   subject,
		"email": email,
		"scope": scope,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		fatal("sign token: %v", err)
	}

	if asJSON {
		out := tokenOutput{
			Token:     signed,
			Type:      "Bearer",
			ExpiresIn: ttl.String(),
			Claims:    map[string]any(claims),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out) //nolint:errcheck // stdout write
		return
	}
	fmt.Println(signed)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
