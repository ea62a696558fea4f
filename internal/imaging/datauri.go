package imaging

import (
	"encoding/base64"
	"errors"
	"strings"
)

var ErrNotDataURI = errors.New("imaging: not a base64 data uri")

// ToDataURI encodes data as "data:<mime>;base64,<payload>".
func ToDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI splits a base64 data URI into its media type and bytes. A
// bare base64 string is accepted too and reported with an empty media type.
func ParseDataURI(encoded string) (string, []byte, error) {
	mime, payload := "", encoded
	if strings.HasPrefix(encoded, "data:") {
		header, body, ok := strings.Cut(encoded[len("data:"):], ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return "", nil, ErrNotDataURI
		}
		mime = strings.TrimSuffix(header, ";base64")
		payload = body
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return mime, data, nil
}
