package oauth2

import (
	"github.com/emersion/go-sasl"
)

// NewXOAUTH2Client creates a SASL client for XOAUTH2 authentication
func NewXOAUTH2Client(username, token string) sasl.Client {
	return &xoauth2Client{
		username: username,
		token:    token,
	}
}

// xoauth2Client implements the XOAUTH2 SASL mechanism
type xoauth2Client struct {
	username string
	token    string
}

func (a *xoauth2Client) Start() (mech string, ir []byte, err error) {
	// user=<username>^Aauth=Bearer <token>^A^A
	ir = []byte("user=" + a.username + "\x01auth=Bearer " + a.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

// Next is never reached on success, XOAUTH2 is a single round trip
func (a *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return nil, sasl.ErrUnexpectedServerChallenge
}
