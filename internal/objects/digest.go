// Package objects implements the content-addressed object store: digest
// computation, deterministic serialization, and persistence of blobs and
// commits under digest-named files.
package objects

import (
	"fmt"
	"strings"

	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
)

// Digest is a 40-hex-character content address. It wraps a CIDv1 built
// over a SHA-1 multihash; String renders the bare hex form by stripping
// the multibase self-description byte that would otherwise prefix it.
type Digest struct {
	c gocid.Cid
}

// Undef is the zero Digest, equivalent to "no object".
var Undef = Digest{}

// IsUndef reports whether d is the zero Digest.
func (d Digest) IsUndef() bool {
	return !d.c.Defined()
}

// String renders the digest as a 40-character lowercase hex string.
func (d Digest) String() string {
	if !d.c.Defined() {
		return ""
	}
	dmh, err := multihash.Decode(d.c.Hash())
	if err != nil {
		return ""
	}
	encoded, err := multibase.Encode(multibase.Base16, dmh.Digest)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(encoded, string(multibase.Base16))
}

// Cid exposes the underlying content identifier. Object-store filenames
// use String, not the identifier's own encoding.
func (d Digest) Cid() gocid.Cid {
	return d.c
}

// Equal reports whether two digests address the same content.
func (d Digest) Equal(other Digest) bool {
	return d.c.Equals(other.c)
}

// compute builds a Digest from raw bytes using a SHA-1 multihash.
func compute(data []byte) (Digest, error) {
	mh, err := multihash.Sum(data, multihash.SHA1, -1)
	if err != nil {
		return Undef, fmt.Errorf("compute multihash: %w", err)
	}
	return Digest{c: gocid.NewCidV1(gocid.Raw, mh)}, nil
}

// ParseDigest parses a 40-hex-character digest string produced by
// Digest.String back into a Digest.
func ParseDigest(s string) (Digest, error) {
	if len(s) != 40 {
		return Undef, fmt.Errorf("parse digest %q: want 40 hex characters, got %d", s, len(s))
	}
	_, raw, err := multibase.Decode(string(multibase.Base16) + s)
	if err != nil {
		return Undef, fmt.Errorf("parse digest %q: %w", s, err)
	}
	built, err := multihash.Encode(raw, multihash.SHA1)
	if err != nil {
		return Undef, fmt.Errorf("parse digest %q: encode multihash: %w", s, err)
	}
	return Digest{c: gocid.NewCidV1(gocid.Raw, multihash.Multihash(built))}, nil
}
