package auth

import (
	"github.com/dropDatabas3/hellobff/internal/session"
)

// PartitionKey derives the token-cache partition key from session state: the
// home account id, or "" when no account is authenticated yet. The cache
// adapter treats "" as "no-op, return empty", never as a wildcard, so
// pre-login sessions can never read another user's tokens.
func PartitionKey(sess *session.Session) string {
	if sess == nil {
		return ""
	}
	return sess.HomeAccountID
}

// PartitionKeyFromAccount derives the partition key from a cached account
// entity. An account without a home account id cannot be partitioned and is
// rejected outright.
func PartitionKeyFromAccount(acct Account) (string, error) {
	if acct.HomeAccountID == "" {
		return "", NewError(KindPartitionKeyMissing, "account entity has no home account id")
	}
	return acct.HomeAccountID, nil
}
