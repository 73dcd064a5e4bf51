package registrar

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	passwordLength = 14

	lowerChars  = "abcdefghijkmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digitChars  = "23456789"
	symbolChars = "!@#$%^&*-_+="
)

var (
	adjectives = []string{"brave", "calm", "clever", "eager", "gentle", "happy", "lucky", "quiet", "rapid", "silver", "sunny", "witty"}
	nouns      = []string{"badger", "falcon", "fox", "heron", "lynx", "otter", "owl", "panda", "raven", "tiger", "walrus", "wolf"}
	firstNames = []string{"Anna", "Dmitry", "Elena", "Igor", "Maria", "Nikita", "Olga", "Pavel", "Sofia", "Viktor"}
	lastNames  = []string{"Ivanova", "Kuznetsov", "Morozova", "Orlov", "Petrova", "Smirnov", "Sokolova", "Volkov"}
	domains    = []string{"gmail.com", "mail.ru", "yandex.ru", "outlook.com"}
)

// Identity is the synthetic account data submitted on a sign-up form.
type Identity struct {
	Login       string
	Password    string
	Email       string
	DisplayName string
}

// NewIdentity generates a random identity: login adjective_noun_NNNN, a 14 character password
// mixing lower and upper case letters with digits and symbols, an email on a public domain and a
// "First Last" display name.
func NewIdentity() (Identity, error) {
	adj, err := pick(adjectives)
	if err != nil {
		return Identity{}, err
	}
	noun, err := pick(nouns)
	if err != nil {
		return Identity{}, err
	}
	n, err := randInt(10000)
	if err != nil {
		return Identity{}, err
	}
	login := fmt.Sprintf("%s_%s_%04d", adj, noun, n)

	password, err := NewPassword(passwordLength)
	if err != nil {
		return Identity{}, err
	}

	domain, err := pick(domains)
	if err != nil {
		return Identity{}, err
	}
	first, err := pick(firstNames)
	if err != nil {
		return Identity{}, err
	}
	last, err := pick(lastNames)
	if err != nil {
		return Identity{}, err
	}

	return Identity{
		Login:       login,
		Password:    password,
		Email:       login + "@" + domain,
		DisplayName: first + " " + last,
	}, nil
}

// NewPassword returns a random password of at least 12 characters with at least one character
// from each class.
func NewPassword(length int) (string, error) {
	if length < 12 {
		length = 12
	}

	classes := []string{lowerChars, upperChars, digitChars, symbolChars}
	all := lowerChars + upperChars + digitChars + symbolChars

	buf := make([]byte, 0, length)
	for _, class := range classes {
		c, err := pickByte(class)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for len(buf) < length {
		c, err := pickByte(all)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	// Fisher-Yates so the class characters are not always first.
	for i := len(buf) - 1; i > 0; i-- {
		j, err := randInt(i + 1)
		if err != nil {
			return "", err
		}
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf), nil
}

func randInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to read random number: %w", err)
	}
	return int(v.Int64()), nil
}

func pick(values []string) (string, error) {
	i, err := randInt(len(values))
	if err != nil {
		return "", err
	}
	return values[i], nil
}

func pickByte(chars string) (byte, error) {
	i, err := randInt(len(chars))
	if err != nil {
		return 0, err
	}
	return chars[i], nil
}
