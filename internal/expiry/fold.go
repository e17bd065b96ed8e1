package expiry

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// transformers are stateful, so each call takes its own chain from the pool
var foldPool = sync.Pool{
	New: func() any {
		return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	},
}

// fold lower-cases s and strips accents: "Díc" -> "dic".
func fold(s string) string {
	t := foldPool.Get().(transform.Transformer)
	out, _, err := transform.String(t, s)
	t.Reset()
	foldPool.Put(t)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
