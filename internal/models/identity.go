package models

// FederatedIdentity is an identity asserted by an external provider.
type FederatedIdentity struct {
	Email string
	Name  string
}
