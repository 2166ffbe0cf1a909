package atollbuild

import (
	"fmt"

	"github.com/atolldev/atoll/atollruntime"
	"golang.org/x/crypto/blake2b"
)

// hashedManifestName returns the content-addressed route manifest filename,
// e.g. "route-manifest.3f9a1c204b7d.json". Identical manifest bytes always
// yield the same name, so unchanged builds stay cache-hit friendly.
func hashedManifestName(content []byte) string {
	sum := blake2b.Sum256(content)
	return fmt.Sprintf("%s%x.json", atollruntime.AtollRouteManifestPrefix, sum[:6])
}

// buildIDFromContent derives the build ID from the manifest bytes.
func buildIDFromContent(content []byte) string {
	sum := blake2b.Sum256(content)
	return fmt.Sprintf("%x", sum[:8])
}
