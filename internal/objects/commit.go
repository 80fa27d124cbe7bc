package objects

import (
	"encoding/json"
	"time"
)

// timestampLayout renders commit dates like
// "Thu Jan 01 00:00:00 1970 +0000".
const timestampLayout = "Mon Jan 02 15:04:05 2006 -0700"

// Epoch is the timestamp stamped on the initial commit of every repository.
var Epoch = time.Unix(0, 0).UTC()

// Commit is an immutable snapshot: up to two parents, a timestamp, a
// message, and the complete filename-to-blob-digest mapping. It is never
// a delta against its parent.
type Commit struct {
	Parent1   string            `json:"parent1,omitempty"`
	Parent2   string            `json:"parent2,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Message   string            `json:"message"`
	Tracked   map[string]string `json:"tracked"`
}

// FormatTimestamp renders t in the local time zone using the commit
// date format.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(timestampLayout)
}

// serialize produces the digestable byte form. encoding/json is
// deterministic for this record: struct fields encode in declaration
// order and Tracked's keys are sorted by the encoder, so equal commits
// always yield equal bytes.
func (c Commit) serialize() ([]byte, error) {
	if c.Tracked == nil {
		c.Tracked = map[string]string{}
	}
	return json.Marshal(c)
}

func deserializeCommit(data []byte) (Commit, error) {
	var c Commit
	if err := json.Unmarshal(data, &c); err != nil {
		return Commit{}, err
	}
	if c.Tracked == nil {
		c.Tracked = map[string]string{}
	}
	return c, nil
}

// Digest computes the content address of the commit without storing it.
func (c Commit) Digest() (Digest, error) {
	data, err := c.serialize()
	if err != nil {
		return Undef, err
	}
	return compute(data)
}

// Summary reduces a commit to the fields needed for log/find/ancestry
// without deserializing the full tracked-file map.
type Summary struct {
	Parent1   string
	Parent2   string
	Timestamp time.Time
	Message   string
}

func (c Commit) Summary() Summary {
	return Summary{
		Parent1:   c.Parent1,
		Parent2:   c.Parent2,
		Timestamp: c.Timestamp,
		Message:   c.Message,
	}
}
