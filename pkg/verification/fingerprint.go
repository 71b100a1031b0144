package verification

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"github.com/concord-labs/concord/pkg/contracts"
)

// Fingerprint deterministically identifies one verification unit: the
// policy content plus its safety properties. Equal inputs always hash
// equal (JCS canonical JSON → SHA-256), which is what the dedup
// invariant rests on.
func Fingerprint(content string, props []contracts.SafetyProperty) (string, error) {
	unit := struct {
		Content    string                     `json:"content"`
		Properties []contracts.SafetyProperty `json:"properties"`
	}{Content: content, Properties: props}

	raw, err := json.Marshal(unit)
	if err != nil {
		return "", fmt.Errorf("verification: marshal fingerprint unit: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("verification: canonicalize fingerprint unit: %w", err)
	}

	h := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(h[:]), nil
}
