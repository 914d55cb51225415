package object

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Signature represents the author/committer and time of a commit
type Signature struct {
	Name  string
	Email string
	Time  time.Time
}

// NewSignature generates a signature at the current date and time
func NewSignature(name, email string) Signature {
	return Signature{
		Name:  name,
		Email: email,
		Time:  time.Now(),
	}
}

// NewSignatureFromBytes returns a signature from an array of bytes
//
// A signature has the following format:
// User Name <user.email@domain.tld> timestamp timezone
// Ex:
// John Doe <john@domain.tld> 1566115917 -0700
func NewSignatureFromBytes(b []byte) (Signature, error) {
	sig := Signature{}

	// First we get the name, which is everything before the "<"
	// (minus the extra space)
	open := strings.IndexByte(string(b), '<')
	if open <= 0 {
		return sig, errors.New("couldn't retrieve the name")
	}
	sig.Name = strings.TrimSpace(string(b[:open]))

	// Now we get the email, which is between "<" and ">"
	closing := strings.IndexByte(string(b), '>')
	if closing < open {
		return sig, errors.New("couldn't retrieve the email")
	}
	sig.Email = string(b[open+1 : closing])

	// Next is the timestamp and the timezone, separated by a space
	rest := strings.TrimSpace(string(b[closing+1:]))
	parts := strings.SplitN(rest, " ", 2)
	if len(parts) != 2 {
		return sig, errors.New("signature stopped after the email")
	}

	t, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return sig, errors.Wrapf(err, "invalid timestamp %s", parts[0])
	}

	// To get and set the timezone we can just parse the time with an
	// empty date and copy its location over to the signature
	tz, err := time.Parse("-0700", parts[1])
	if err != nil {
		return sig, errors.Wrapf(err, "invalid timezone format %s", parts[1])
	}
	sig.Time = time.Unix(t, 0).In(tz.Location())

	return sig, nil
}

// String returns a stringified version of the Signature, the way it
// appears inside a commit:
// User Name <user.email@domain.tld> timestamp timezone
func (sig Signature) String() string {
	return fmt.Sprintf("%s <%s> %d %s", sig.Name, sig.Email, sig.Time.Unix(), sig.Time.Format("-0700"))
}

// ShortDate returns the date of the signature in a compact
// human-readable form
func (sig Signature) ShortDate() string {
	return sig.Time.Format("2006-01-02")
}
