package auth

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
)

// CodeGenerator returns a one-time numeric code.
type CodeGenerator func() (string, error)

// NewCodeGenerator draws codes uniformly from [10^(digits-1), 10^digits),
// so a 6 digit code is one of 900000 values between 100000 and 999999.
func NewCodeGenerator(digits int) (CodeGenerator, error) {
	if digits < 4 || digits > 10 {
		return nil, errors.New("code digits must be between 4 and 10")
	}

	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits-1)), nil)
	high := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	span := new(big.Int).Sub(high, low)

	return func() (string, error) {
		n, err := rand.Int(rand.Reader, span)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n.Add(n, low).Int64(), 10), nil
	}, nil
}
