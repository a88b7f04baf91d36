package storage

import (
	"path/filepath"
	"strings"

	"sewabaju/internal/apperr"

	"github.com/gabriel-vasile/mimetype"
)

// MaxProofSize is the largest accepted proof-of-payment upload.
const MaxProofSize = 5 * 1024 * 1024

var proofTypes = map[string][]string{
	".jpg":  {"image/jpeg"},
	".jpeg": {"image/jpeg"},
	".png":  {"image/png"},
	".pdf":  {"application/pdf"},
}

// Upload is a file received from a caller.
type Upload struct {
	Filename string
	Data     []byte
}

// ValidateProof checks size, extension and sniffed content of a proof file.
// The content must match what the extension claims.
func ValidateProof(u *Upload) error {
	if u == nil || len(u.Data) == 0 {
		return apperr.Validation("proof", "proof of payment file is required")
	}
	if len(u.Data) > MaxProofSize {
		return apperr.Validation("proof", "file is %d bytes, the limit is %d", len(u.Data), MaxProofSize)
	}
	ext := strings.ToLower(filepath.Ext(u.Filename))
	allowed, ok := proofTypes[ext]
	if !ok {
		return apperr.Validation("proof", "file type %q is not allowed, use jpg, jpeg, png or pdf", ext)
	}
	detected := mimetype.Detect(u.Data)
	for _, mime := range allowed {
		if detected.Is(mime) {
			return nil
		}
	}
	return apperr.Validation("proof", "file content is %s, which does not match %s", detected.String(), ext)
}
