package library

import (
	"errors"
	"strconv"
	"unicode/utf16"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher turns a password into the digest stored on a User and
// checks candidates against it.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(digest, password string) bool
}

// RollingHasher is the 32-bit rolling hash (h = h*31 + c over UTF-16 code
// units, rendered as signed hex) that existing exported user data was
// written with. It is not a cryptographic hash: anyone holding the digest
// can find a matching password quickly.
type RollingHasher struct{}

func (RollingHasher) Hash(password string) (string, error) {
	return rollingHash(password), nil
}

func (RollingHasher) Verify(digest, password string) bool {
	return rollingHash(password) == digest
}

func rollingHash(s string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	return strconv.FormatInt(int64(h), 16)
}

// BcryptHasher stores bcrypt digests.
type BcryptHasher struct {
	Cost int // 0 means bcrypt.DefaultCost
}

func (b BcryptHasher) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", validationError("hash password", "password is longer than 72 bytes")
	}
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

func (BcryptHasher) Verify(digest, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// HasherByName maps a configuration value to a PasswordHasher.
func HasherByName(name string) (PasswordHasher, error) {
	switch name {
	case "", "rolling":
		return RollingHasher{}, nil
	case "bcrypt":
		return BcryptHasher{}, nil
	default:
		return nil, validationError("password hasher", "unknown scheme %q (want rolling or bcrypt)", name)
	}
}
