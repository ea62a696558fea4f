package ledger

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateCode returns ECO-XXXX-YYYY: four random characters, then the
// last four characters of the base-36 millisecond timestamp.
func GenerateCode(rng *rand.Rand, now time.Time) string {
	var b strings.Builder
	b.WriteString("ECO-")
	for i := 0; i < 4; i++ {
		b.WriteByte(codeAlphabet[rng.IntN(len(codeAlphabet))])
	}
	b.WriteByte('-')

	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	if len(ts) < 4 {
		ts = strings.Repeat("0", 4-len(ts)) + ts
	}
	b.WriteString(ts[len(ts)-4:])

	return b.String()
}
