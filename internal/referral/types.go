package referral

import "github.com/briangreenhill/referrals/internal/auth"

const (
	// PrefixToken namespaces the singleton referral token of each user.
	PrefixToken = auth.TypeReferral
	// PrefixLookup namespaces cached referral lookups by user id.
	PrefixLookup = "referral_token_by_email_or_id"
)

// Error details returned to clients.
const (
	ErrTypeInvalidToken = "Invalid token."
	ErrMsgNoToken       = "Token is not exist."
	ErrTypeNotFound     = "HTTP_404_NOT_FOUND"
	ErrMsgNoReferrals   = "No referrals found"
	ErrTypeInvalidID    = "Invalid ID."
	ErrMsgBadID         = "Type ID is not correct."
	ErrMsgSelfReferral  = "Referral token belongs to the caller."
	ErrTypeConflict     = "Already referred."
	ErrMsgReferred      = "The user already has a referrer."
)

// TokenReferral is the value held in the singleton cache and returned on issue.
type TokenReferral struct {
	ReferralToken string `json:"referral_token"`
}

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserReferrals lists the users referred by one referrer.
type UserReferrals struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Referrals []User `json:"referrals"`
}

// Owner identifies the user a referral token was issued to.
type Owner struct {
	ID string `json:"id"`
}
