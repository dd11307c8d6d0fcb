package domain

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	DonorIDPrefix   = "IBC-"
	BankIDPrefix    = "BB-"
	RequestIDPrefix = "REQ-"
	CampIDPrefix    = "CAMP-"

	idSuffixLen = 9
	base36      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// NewID returns prefix followed by 9 upper-case base36 characters.
// Not collision-proof; storage-level unique keys catch the rare clash.
func NewID(prefix string) string {
	var b strings.Builder
	b.Grow(len(prefix) + idSuffixLen)
	b.WriteString(prefix)
	max := big.NewInt(int64(len(base36)))
	for i := 0; i < idSuffixLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing is not recoverable in a meaningful way
			panic(err)
		}
		b.WriteByte(base36[n.Int64()])
	}
	return b.String()
}

func IDPrefixFor(role Role) string {
	if role == RoleBank {
		return BankIDPrefix
	}
	return DonorIDPrefix
}
