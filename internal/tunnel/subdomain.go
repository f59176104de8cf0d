package tunnel

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

// subdomainPattern is spec.md §3's registry-entry invariant on subdomain
// labels. Grounded in the teacher's internal/utils/subdomain.go validation,
// simplified to the single regex the spec names (no reserved-word list,
// no profanity filter — out of scope here).
var subdomainPattern = regexp.MustCompile(`^[a-z0-9-]{3,63}$`)

// ValidSubdomain reports whether label is an acceptable tunnel subdomain.
func ValidSubdomain(label string) bool {
	return subdomainPattern.MatchString(label)
}

const randomLabelAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
const randomLabelLength = 7

// RandomSubdomain synthesizes a random 7-character base-36 label, used when
// a client requests no subdomain or an invalid one, and again when a
// synthesized label collides (a taken requested subdomain is answered with
// ERROR SUBDOMAIN_TAKEN instead) (spec.md §4.4 "Registration"). Grounded in the teacher's base36 encoding
// technique (internal/utils/subdomain.go GenerateSubdomainForUser), dropped
// down from its HMAC+wordlist scheme to plain crypto/rand sampling since
// this spec has no per-user deterministic naming requirement.
func RandomSubdomain() (string, error) {
	out := make([]byte, randomLabelLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(randomLabelAlphabet))))
		if err != nil {
			return "", err
		}
		out[i] = randomLabelAlphabet[n.Int64()]
	}
	return string(out), nil
}
