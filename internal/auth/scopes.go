package auth

const (
	ScopeOpenID         = "openid"
	ScopeProfile        = "profile"
	ScopeEmail          = "email"
	ScopeDatasetsRead   = "datasets:read"
	ScopeDatasetsWrite  = "datasets:write"
	ScopeDatasetsExport = "datasets:export"
)

// AllScopes defines the full set of scopes requested by the Swagger UI.
var AllScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
	ScopeDatasetsRead,
	ScopeDatasetsWrite,
	ScopeDatasetsExport,
}
