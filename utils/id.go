package utils

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Numbers and english alphabet without lookalikes: 1, l, I, 0, O, o, u, v, 5, S, s, 2, Z.
const noLookalikes = "346789ABCDEFGHJKLMNPQRTUVWXYabcdefghijkmnpqrtwxyz"

const defaultIDLength = 14

// Public-facing identifier prefixes. Internal serial keys never leave
// the catalog; these are what the API exposes.
const (
	PrefixAccount  = "usr"
	PrefixDocument = "doc"
)

// GenerateID returns a public-facing ID like "doc_X7Yk93ndA3f8Sq".
func GenerateID(prefix string) string {
	id, err := gonanoid.Generate(noLookalikes, defaultIDLength)
	if err != nil {
		// gonanoid only errors on invalid alphabet/length. The constants
		// above are valid, so this is unreachable in practice.
		panic(fmt.Sprintf("generate id: %v", err))
	}
	return prefix + "_" + id
}
