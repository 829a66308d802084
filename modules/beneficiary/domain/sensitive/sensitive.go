package sensitive

// Kind selects the masking shape for a sensitive field.
type Kind string

const (
	KindAadhaar Kind = "aadhaar"
	KindMobile  Kind = "mobile"
	KindEmail   Kind = "email"
)

// Service is the collaborator guarding sensitive fields. Diffing and review
// rendering only ever see decrypted or masked values; ciphertext stays
// inside the canonical rows.
type Service interface {
	Encrypt(value string) (string, error)
	Decrypt(ciphertext string) (string, error)
	Mask(value string, kind Kind) string
}
