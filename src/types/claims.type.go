package types

import "github.com/golang-jwt/jwt/v5"

type Claims struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone_number"`
	CustomerID string `json:"customer_id"`
	UID        string `json:"uid"`
	jwt.RegisteredClaims
}

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	return c.RegisteredClaims.GetExpirationTime()
}
func (c Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	return c.RegisteredClaims.GetIssuedAt()
}
func (c Claims) GetNotBefore() (*jwt.NumericDate, error) {
	return c.RegisteredClaims.GetNotBefore()
}
func (c Claims) GetIssuer() (string, error) {
	return c.RegisteredClaims.GetIssuer()
}
func (c Claims) GetSubject() (string, error) {
	return c.RegisteredClaims.GetSubject()
}
func (c Claims) GetAudience() (jwt.ClaimStrings, error) {
	return c.RegisteredClaims.GetAudience()
}

// Identity is the caller as asserted by the identity provider's bearer
// token. The engine never issues or refreshes tokens itself.
type Identity struct {
	UID        string
	CustomerID string
	Name       string
	Email      string
	Phone      string
	Bearer     string
}

func (i *Identity) Authenticated() bool {
	return i != nil && i.CustomerID != ""
}
