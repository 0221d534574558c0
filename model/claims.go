package model

import "github.com/golang-jwt/jwt/v5"

// AppClaims is the payload of an access token. Authorities is the
// comma-joined authority set of the subject.
type AppClaims struct {
	Authorities string `json:"auth"`
	jwt.RegisteredClaims
}
