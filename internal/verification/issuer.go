package verification

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/hugh/evently/pkg/crypto"
)

const (
	EmailTokenTTL   = 24 * time.Hour
	OTPTTL          = 10 * time.Minute
	emailTokenBytes = 32
)

var otpSpan = big.NewInt(900000)

// Issuer mints email tokens and OTPs. It has no side effects beyond reading
// its clock and randomness source.
type Issuer struct {
	now    func() time.Time
	random io.Reader
}

// NewIssuer builds an Issuer. Nil arguments fall back to time.Now and crypto/rand.
func NewIssuer(now func() time.Time, random io.Reader) *Issuer {
	if now == nil {
		now = time.Now
	}
	if random == nil {
		random = rand.Reader
	}
	return &Issuer{now: now, random: random}
}

func (i *Issuer) Now() time.Time {
	return i.now()
}

// IssueEmailToken returns 64 hex characters valid for 24 hours.
func (i *Issuer) IssueEmailToken() (string, time.Time, error) {
	token, err := crypto.RandomHex(i.random, emailTokenBytes)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, i.now().Add(EmailTokenTTL), nil
}

// IssueOTP returns a six digit code in [100000, 999999] valid for 10 minutes.
func (i *Issuer) IssueOTP() (string, time.Time, error) {
	n, err := rand.Int(i.random, otpSpan)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generating otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), i.now().Add(OTPTTL), nil
}

// expired reports whether a token with the given expiry is no longer usable.
func expired(now time.Time, expiry *time.Time) bool {
	return expiry == nil || !now.Before(*expiry)
}
