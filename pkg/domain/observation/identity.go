package observation

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// IdentityHash builds the stable fingerprint that groups re-scans of the
// same logical finding. It is a SHA-256 over a canonical concatenation of
// the identity-relevant fields, each case-folded and whitespace-trimmed.
// Fields that are absent contribute nothing, so a present-but-empty field
// hashes identically to a missing one.
func IdentityHash(o *Observation) string {
	var b strings.Builder
	write := func(s string) {
		b.WriteString(strings.ToLower(strings.TrimSpace(s)))
	}

	write(o.title)

	origin := o.origin
	if origin.ComponentName != "" && origin.ComponentVersion != "" {
		write(origin.ComponentName + ":" + origin.ComponentVersion)
	} else {
		write(origin.ComponentName)
		write(origin.ComponentVersion)
	}

	if origin.DockerImageName != "" && origin.DockerImageTag != "" {
		write(origin.DockerImageName + ":" + origin.DockerImageTag)
	} else {
		write(origin.DockerImageName)
		write(origin.DockerImageTag)
	}

	write(origin.EndpointURL)
	write(origin.ServiceName)

	write(origin.SourceFile)
	if origin.SourceLineStart != nil {
		write(strconv.Itoa(*origin.SourceLineStart))
	}
	if origin.SourceLineEnd != nil {
		write(strconv.Itoa(*origin.SourceLineEnd))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
