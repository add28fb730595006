package seed

import (
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/edi-spaghetti/cs50w-network/internal/schema"
)

var lorem = strings.Fields(`lorem ipsum dolor sit amet consectetur adipiscing elit sed do
eiusmod tempor incididunt ut labore et dolore magna aliqua enim ad minim veniam
quis nostrud exercitation ullamco laboris nisi aliquip ex ea commodo consequat
duis aute irure in reprehenderit voluptate velit esse cillum eu fugiat nulla
pariatur excepteur sint occaecat cupidatat non proident sunt culpa qui officia
deserunt mollit anim id est laborum`)

// sentence joins between 5 and 30 random words, dropping any word that
// would push the text past the post length limit.
func sentence(rng *rand.Rand) string {
	n := 5 + rng.IntN(26)
	words := make([]string, 0, n)
	length := -1
	for i := 0; i < n; i++ {
		w := lorem[rng.IntN(len(lorem))]
		if length+1+utf8.RuneCountInString(w) > schema.MaxContentLen {
			continue
		}
		words = append(words, w)
		length += 1 + utf8.RuneCountInString(w)
	}
	return strings.Join(words, " ")
}
