package auth

// OwnerKind distinguishes a verified account identity from an identity
// sourced from an external system (a university portal username) that the
// platform never verified itself.
type OwnerKind string

const (
	OwnerKindAccount  OwnerKind = "account"
	OwnerKindExternal OwnerKind = "external"
)

// OwnerRef identifies the owner of a resource on every store access.
// Replacing raw owner-id strings with this type keeps unverified external
// identities explicit instead of silently relaxing integrity checks.
type OwnerRef struct {
	ID   string
	Kind OwnerKind
}

// Account builds a verified account reference
func Account(id string) OwnerRef {
	return OwnerRef{ID: id, Kind: OwnerKindAccount}
}

// External builds an unverified external-identity reference
func External(id string) OwnerRef {
	return OwnerRef{ID: id, Kind: OwnerKindExternal}
}

// Verified reports whether the identity was authenticated by this platform
func (o OwnerRef) Verified() bool {
	return o.Kind == OwnerKindAccount
}

// Owns reports whether the reference owns the resource with the given owner id
func (o OwnerRef) Owns(ownerID string) bool {
	return o.ID != "" && o.ID == ownerID
}

// ContextKey is the gin context key the auth middleware stores the OwnerRef under
const ContextKey = "owner_ref"
