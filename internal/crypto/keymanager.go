package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	keyfileVersion   = 1
)

// keyfileJSON is the on-disk format of an encrypted signing seed.
type keyfileJSON struct {
	Version    int    `json:"version"`
	Address    string `json:"address"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeyConfig tells LoadKeyPair where the signing key comes from.
type KeyConfig struct {
	// RawSeed is the hex-encoded 32-byte ed25519 seed (0x prefix optional).
	// If non-empty, LoadKeyPair uses it directly.
	RawSeed string

	// KeyfilePath is a file produced by EncryptKeyPair.
	KeyfilePath string

	// Password decrypts the file at KeyfilePath.
	Password string
}

// EncryptKeyPair seals the seed of kp with PBKDF2-HMAC-SHA256 and
// AES-256-GCM. The address is stored in clear so the file can be identified
// without the password.
func EncryptKeyPair(kp *KeyPair, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}

	gcm, err := keyfileCipher(password, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	addr := kp.Address()
	out := keyfileJSON{
		Version:    keyfileVersion,
		Address:    addr.String(),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, kp.Seed(), addr[:])),
	}
	return json.MarshalIndent(out, "", "  ")
}

// DecryptKeyPair opens a keyfile produced by EncryptKeyPair.
func DecryptKeyPair(data []byte, password string) (*KeyPair, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}

	var stored keyfileJSON
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("crypto: parsing keyfile: %w", err)
	}
	if stored.Version != keyfileVersion {
		return nil, fmt.Errorf("crypto: unsupported keyfile version %d", stored.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(stored.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding ciphertext: %w", err)
	}

	gcm, err := keyfileCipher(password, salt)
	if err != nil {
		return nil, err
	}

	addr, err := domain.ParseAddress(stored.Address)
	if err != nil {
		return nil, fmt.Errorf("crypto: keyfile address: %w", err)
	}

	seed, err := gcm.Open(nil, nonce, ciphertext, addr[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: decryption failed (wrong password?): %w", err)
	}
	return KeyFromSeed(seed)
}

// LoadKeyPair resolves a signing key: RawSeed first, then KeyfilePath.
func LoadKeyPair(cfg KeyConfig) (*KeyPair, error) {
	if cfg.RawSeed != "" {
		seed, err := hex.DecodeString(strings.TrimPrefix(cfg.RawSeed, "0x"))
		if err != nil {
			return nil, fmt.Errorf("crypto: RawSeed is not valid hex: %w", err)
		}
		return KeyFromSeed(seed)
	}

	if cfg.KeyfilePath != "" {
		data, err := os.ReadFile(cfg.KeyfilePath)
		if err != nil {
			return nil, fmt.Errorf("crypto: reading keyfile: %w", err)
		}
		return DecryptKeyPair(data, cfg.Password)
	}

	return nil, errors.New("crypto: no signing key configured (set RawSeed or KeyfilePath)")
}

func keyfileCipher(password string, salt []byte) (cipher.AEAD, error) {
	derivedKey := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	return gcm, nil
}
