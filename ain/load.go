package ain

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Load reads a gob-encoded Image from path. The proprietary binary
// decoder/decryptor that turns a distributed module into this
// intermediate form is out of scope (§1); Load and Save round-
// trip whatever a separate offline decode step already produced, the
// same way Builder lets a test construct one in-process without going
// through a file at all.
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ain: open %s: %w", path, err)
	}
	defer f.Close()

	var img Image
	if err := gob.NewDecoder(f).Decode(&img); err != nil {
		return nil, fmt.Errorf("ain: decode %s: %w", path, err)
	}
	return &img, nil
}

// Save writes img to path as the gob encoding Load reads back. Mainly
// useful for turning a Builder-constructed fixture into a file cmd/ainvm
// can exercise end to end.
func Save(path string, img *Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ain: create %s: %w", path, err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(img); err != nil {
		return fmt.Errorf("ain: encode %s: %w", path, err)
	}
	return nil
}
