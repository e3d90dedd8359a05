package types

import (
	"encoding/hex"
	"encoding/json"

	"github.com/zeebo/blake3"
)

// stableCategories are the categories that do not change between visits of
// the same device. Network origin, storage toggles and the timezone result,
// which carries the current date, are left out.
var stableCategories = []Category{
	Environment,
	Display,
	CanvasRender,
	GraphicsRender,
	AudioRender,
	Fonts,
}

// SignatureID derives a short device identifier from the stable categories.
// Failed categories contribute their failure shape, so two records with the
// same content always share an id.
func (r *Record) SignatureID() (string, error) {
	h := blake3.New()
	for _, c := range stableCategories {
		res, ok := r.Results[c]
		if !ok {
			continue
		}
		b, err := json.Marshal(res)
		if err != nil {
			return "", err
		}
		_, _ = h.Write([]byte(c))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(b)
		_, _ = h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)[:16]), nil
}
