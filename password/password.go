// Package password generates random passwords and rates password strength.
package password

import (
	"errors"
	"fmt"
	"math"

	"github.com/jmcleod/ironkeep/internal/util"
)

const (
	Lowercase = "abcdefghijklmnopqrstuvwxyz"
	Uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Digits    = "0123456789"
	Symbols   = "!@#$%^&*()-_+=<>?"

	DefaultLength = 16
	MaxLength     = 512
)

var (
	ErrNoCharacterClass = errors.New("at least one character class must be selected")
	ErrInvalidLength    = errors.New("invalid password length")
)

// Options selects the length and character classes of a generated password.
type Options struct {
	Length    int
	Uppercase bool
	Lowercase bool
	Digits    bool
	Symbols   bool
}

// DefaultOptions returns a 16 character password using every class.
func DefaultOptions() Options {
	return Options{
		Length:    DefaultLength,
		Uppercase: true,
		Lowercase: true,
		Digits:    true,
		Symbols:   true,
	}
}

func (o Options) classes() []string {
	var out []string
	if o.Uppercase {
		out = append(out, Uppercase)
	}
	if o.Lowercase {
		out = append(out, Lowercase)
	}
	if o.Digits {
		out = append(out, Digits)
	}
	if o.Symbols {
		out = append(out, Symbols)
	}
	return out
}

// Generate returns a random password containing at least one character from
// every selected class.
func Generate(opts Options) (string, error) {
	classes := opts.classes()
	if len(classes) == 0 {
		return "", ErrNoCharacterClass
	}
	if opts.Length < len(classes) || opts.Length > MaxLength {
		return "", fmt.Errorf("%w: %d (need %d..%d)", ErrInvalidLength, opts.Length, len(classes), MaxLength)
	}

	var all string
	for _, c := range classes {
		all += c
	}

	out := make([]byte, 0, opts.Length)
	for _, c := range classes {
		b, err := pick(c)
		if err != nil {
			return "", err
		}
		out = append(out, b)
	}
	for len(out) < opts.Length {
		b, err := pick(all)
		if err != nil {
			return "", err
		}
		out = append(out, b)
	}

	// Fisher-Yates so the guaranteed characters are not always first.
	for i := len(out) - 1; i > 0; i-- {
		j, err := util.RandomIntn(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}
	s := string(out)
	util.WipeBytes(out)
	return s, nil
}

func pick(charset string) (byte, error) {
	i, err := util.RandomIntn(len(charset))
	if err != nil {
		return 0, err
	}
	return charset[i], nil
}

// Rating is a coarse password strength classification.
type Rating int

const (
	Weak Rating = iota
	Moderate
	Strong
)

func (r Rating) String() string {
	switch r {
	case Weak:
		return "weak"
	case Moderate:
		return "moderate"
	case Strong:
		return "strong"
	default:
		return fmt.Sprintf("Rating(%d)", int(r))
	}
}

// Entropy estimates bits of entropy as length * log2(keyspace), where the
// keyspace is the sum of the character classes present in pw.
func Entropy(pw string) float64 {
	var lower, upper, digit, symbol bool
	n := 0
	for _, r := range pw {
		n++
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}
	pool := 0
	if lower {
		pool += 26
	}
	if upper {
		pool += 26
	}
	if digit {
		pool += 10
	}
	if symbol {
		pool += 32
	}
	if pool == 0 {
		return 0
	}
	return float64(n) * math.Log2(float64(pool))
}

// Strength rates pw: below 40 bits is Weak, below 60 Moderate, otherwise Strong.
func Strength(pw string) Rating {
	e := Entropy(pw)
	switch {
	case e < 40:
		return Weak
	case e < 60:
		return Moderate
	default:
		return Strong
	}
}
