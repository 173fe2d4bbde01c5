package common

const (
	// TokenHeaderName carries the session token on authenticated requests.
	TokenHeaderName = "X-Token"

	// SessionKeyPrefix namespaces session records in the session store.
	SessionKeyPrefix = "auth_"

	// RootParentID is the parent id of entities placed at the top level.
	RootParentID int64 = 0
)
