package objects

import "encoding/json"

// Blob is an immutable (file-name, bytes) pair. Its digest is computed
// over the serialization of the pair, so identical bytes under different
// names yield different digests.
type Blob struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// serialize produces the digestable byte form. encoding/json is
// deterministic for this record: struct fields encode in declaration
// order, so equal blobs always yield equal bytes.
func (b Blob) serialize() ([]byte, error) {
	return json.Marshal(b)
}

func deserializeBlob(data []byte) (Blob, error) {
	var b Blob
	if err := json.Unmarshal(data, &b); err != nil {
		return Blob{}, err
	}
	return b, nil
}

// Digest computes the content address of the blob without storing it.
func (b Blob) Digest() (Digest, error) {
	data, err := b.serialize()
	if err != nil {
		return Undef, err
	}
	return compute(data)
}
