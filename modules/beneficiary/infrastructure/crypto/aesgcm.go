package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/go-faster/errors"

	"github.com/sevakendra/beneficiary-portal/modules/beneficiary/domain/sensitive"
)

// AESGCMService encrypts sensitive fields with AES-GCM. Ciphertexts are
// base64 strings carrying the nonce as a prefix, so rows stay portable
// across restarts with the same key.
type AESGCMService struct {
	aead cipher.AEAD
}

func NewAESGCMService(key []byte) (*AESGCMService, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize GCM")
	}
	return &AESGCMService{aead: aead}, nil
}

func (s *AESGCMService) Encrypt(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, "failed to generate nonce")
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(value), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *AESGCMService) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode ciphertext")
	}
	if len(raw) < s.aead.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	nonce, sealed := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to decrypt")
	}
	return string(plain), nil
}

func (s *AESGCMService) Mask(value string, kind sensitive.Kind) string {
	if value == "" {
		return ""
	}
	switch kind {
	case sensitive.KindAadhaar:
		return "XXXX-XXXX-" + lastN(value, 4)
	case sensitive.KindMobile:
		return "XXXXXX" + lastN(value, 4)
	case sensitive.KindEmail:
		at := strings.IndexByte(value, '@')
		if at <= 0 {
			return "****"
		}
		return value[:1] + "***" + value[at:]
	default:
		return strings.Repeat("X", len(value))
	}
}

func lastN(value string, n int) string {
	if len(value) <= n {
		return value
	}
	return value[len(value)-n:]
}
