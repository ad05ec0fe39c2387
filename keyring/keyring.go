// Package keyring manages a peer's ed25519 signing key — the one piece of
// access control the specification keeps (spec Non-goals: "no access
// control beyond per-peer signing keys"). Keys are encrypted at rest with
// a password-derived AES-GCM key.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/masanar/syncordia/crypto"
	"golang.org/x/crypto/pbkdf2"
)

type keystoreFile struct {
	PeerID     int    `json:"peer_id"`
	PubKey     string `json:"pub_key"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	CipherText string `json:"cipher_text"`
}

// pbkdf2Iterations follows current OWASP guidance for PBKDF2-HMAC-SHA256.
const pbkdf2Iterations = 210_000

// Generate creates a fresh ed25519 key pair for a peer.
func Generate() (crypto.PrivateKey, crypto.PublicKey, error) {
	return crypto.GenerateKeyPair()
}

// Save encrypts priv with password and writes it to path, tagged with the
// owning peer's ID.
func Save(path string, peerID int, password string, priv crypto.PrivateKey) error {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return err
	}
	key := deriveKey(password, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}
	cipherText := gcm.Seal(nil, nonce, priv, nil)

	ks := keystoreFile{
		PeerID:     peerID,
		PubKey:     priv.Public().Hex(),
		Salt:       hex.EncodeToString(salt),
		Nonce:      hex.EncodeToString(nonce),
		CipherText: hex.EncodeToString(cipherText),
	}
	data, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Load decrypts the keystore at path using password, returning the peer ID
// it was saved for and its private key.
func Load(path, password string) (int, crypto.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, err
	}
	var ks keystoreFile
	if err := json.Unmarshal(data, &ks); err != nil {
		return 0, nil, err
	}
	salt, err := hex.DecodeString(ks.Salt)
	if err != nil {
		return 0, nil, err
	}
	nonce, err := hex.DecodeString(ks.Nonce)
	if err != nil {
		return 0, nil, err
	}
	cipherText, err := hex.DecodeString(ks.CipherText)
	if err != nil {
		return 0, nil, err
	}

	key := deriveKey(password, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return 0, nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return 0, nil, err
	}
	privBytes, err := gcm.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return 0, nil, errors.New("keyring: wrong password or corrupted keystore")
	}
	return ks.PeerID, crypto.PrivateKey(privBytes), nil
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, 32, sha256.New)
}
