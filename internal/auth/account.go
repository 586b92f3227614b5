package auth

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hellobff/internal/observability/logger"
	"github.com/dropDatabas3/hellobff/internal/security/secretbox"
)

// Account is the cached account entity for one authenticated user: identity
// claims plus the refresh token needed for silent acquisition.
type Account struct {
	HomeAccountID  string   `json:"home_account_id"`
	LocalAccountID string   `json:"local_account_id"`
	Realm          string   `json:"realm"`
	Username       string   `json:"username"`
	Name           string   `json:"name"`
	RefreshToken   string   `json:"refresh_token"`
	Scopes         []string `json:"scopes,omitempty"`
}

// tokenCacheEntry is the serialized blob stored per partition.
type tokenCacheEntry struct {
	Accounts []Account `json:"accounts"`
}

// TokenCache stores account entries in the distributed cache, one entry per
// partition key, keyed {partitionKey}.{clientID}. All reads and writes go
// through the swallow-errors adapter: a cold or broken cache yields zero
// accounts, never an error.
type TokenCache struct {
	adapter  *CacheAdapter
	clientID string
	ttl      time.Duration
	sealer   *secretbox.Sealer
	log      *zap.Logger
}

// NewTokenCache creates a token cache scoped to one OAuth client.
func NewTokenCache(adapter *CacheAdapter, clientID string, ttl time.Duration, log *zap.Logger) *TokenCache {
	if ttl <= 0 {
		ttl = DefaultEntryTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenCache{adapter: adapter, clientID: clientID, ttl: ttl, log: log}
}

// WithSealer enables at-rest encryption of cached entries. Refresh tokens
// then never touch the cache backend in the clear.
func (tc *TokenCache) WithSealer(s *secretbox.Sealer) *TokenCache {
	tc.sealer = s
	return tc
}

func (tc *TokenCache) entryKey(partitionKey string) string {
	if partitionKey == "" {
		return ""
	}
	return partitionKey + "." + tc.clientID
}

// Accounts returns every account cached under the partition. Empty partition
// key, cache miss and corrupt or undecryptable blobs all yield nil.
func (tc *TokenCache) Accounts(ctx context.Context, partitionKey string) []Account {
	raw := tc.adapter.Get(ctx, tc.entryKey(partitionKey))
	if raw == "" {
		return nil
	}
	if tc.sealer != nil {
		opened, err := tc.sealer.Open(raw)
		if err != nil {
			tc.log.Warn("token cache entry failed decryption, treating as empty",
				logger.Key(tc.entryKey(partitionKey)), logger.Err(err), logger.Component("auth.tokencache"))
			return nil
		}
		raw = opened
	}
	var entry tokenCacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		tc.log.Warn("corrupt token cache entry, treating as empty",
			logger.Key(tc.entryKey(partitionKey)), logger.Err(err), logger.Component("auth.tokencache"))
		return nil
	}
	return entry.Accounts
}

func (tc *TokenCache) writeEntry(ctx context.Context, partitionKey string, entry tokenCacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	value := string(raw)
	if tc.sealer != nil {
		value, err = tc.sealer.Seal(value)
		if err != nil {
			return err
		}
	}
	tc.adapter.Set(ctx, tc.entryKey(partitionKey), value, tc.ttl)
	return nil
}

// SaveAccount writes (or replaces) an account in its partition. The partition
// key comes from the account itself, never from caller input.
func (tc *TokenCache) SaveAccount(ctx context.Context, acct Account) error {
	partitionKey, err := PartitionKeyFromAccount(acct)
	if err != nil {
		return err
	}

	accounts := tc.Accounts(ctx, partitionKey)
	replaced := false
	for i := range accounts {
		if accounts[i].HomeAccountID == acct.HomeAccountID {
			accounts[i] = acct
			replaced = true
			break
		}
	}
	if !replaced {
		accounts = append(accounts, acct)
	}

	return tc.writeEntry(ctx, partitionKey, tokenCacheEntry{Accounts: accounts})
}

// RemoveAccount drops one account from its partition, best-effort. Used at
// logout; failures never block the flow.
func (tc *TokenCache) RemoveAccount(ctx context.Context, partitionKey, homeAccountID string) {
	if partitionKey == "" || homeAccountID == "" {
		return
	}

	accounts := tc.Accounts(ctx, partitionKey)
	if len(accounts) == 0 {
		return
	}

	kept := accounts[:0]
	for _, a := range accounts {
		if a.HomeAccountID != homeAccountID {
			kept = append(kept, a)
		}
	}

	if len(kept) == 0 {
		tc.adapter.Delete(ctx, tc.entryKey(partitionKey))
		return
	}

	_ = tc.writeEntry(ctx, partitionKey, tokenCacheEntry{Accounts: kept})
}

// matchAccount selects the account for a home account id. Strict mode
// requires an exact match. Permissive mode tolerates substring matches and
// falls back to the first cached account when the id is absent, which only
// matters in multi-account edge cases.
func matchAccount(accounts []Account, homeAccountID string, permissive bool) (Account, bool) {
	if homeAccountID != "" {
		for _, a := range accounts {
			if a.HomeAccountID == homeAccountID {
				return a, true
			}
		}
		if permissive {
			for _, a := range accounts {
				if strings.Contains(a.HomeAccountID, homeAccountID) ||
					strings.Contains(homeAccountID, a.HomeAccountID) {
					return a, true
				}
			}
		}
		return Account{}, false
	}

	if permissive && len(accounts) > 0 {
		return accounts[0], true
	}
	return Account{}, false
}
