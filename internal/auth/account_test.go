package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/hellobff/internal/cache"
	"github.com/dropDatabas3/hellobff/internal/security/secretbox"
)

func newTestTokenCache(t *testing.T) *TokenCache {
	t.Helper()
	adapter := NewCacheAdapter(cache.NewMemory(cache.Config{}), time.Minute, nil, nil)
	return NewTokenCache(adapter, "client-1", time.Minute, nil)
}

func TestTokenCache_SaveAndList(t *testing.T) {
	ctx := context.Background()
	tc := newTestTokenCache(t)

	acct := Account{HomeAccountID: "oid-1.tid-1", Username: "ana@example.com", RefreshToken: "rt-1"}
	if err := tc.SaveAccount(ctx, acct); err != nil {
		t.Fatal(err)
	}

	accounts := tc.Accounts(ctx, "oid-1.tid-1")
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(accounts))
	}
	if accounts[0].RefreshToken != "rt-1" {
		t.Fatalf("refresh token lost on round trip: %+v", accounts[0])
	}
}

func TestTokenCache_SaveReplacesById(t *testing.T) {
	ctx := context.Background()
	tc := newTestTokenCache(t)

	first := Account{HomeAccountID: "oid-1.tid-1", RefreshToken: "rt-old"}
	if err := tc.SaveAccount(ctx, first); err != nil {
		t.Fatal(err)
	}
	first.RefreshToken = "rt-new"
	if err := tc.SaveAccount(ctx, first); err != nil {
		t.Fatal(err)
	}

	accounts := tc.Accounts(ctx, "oid-1.tid-1")
	if len(accounts) != 1 {
		t.Fatalf("replace by id must not duplicate, got %d accounts", len(accounts))
	}
	if accounts[0].RefreshToken != "rt-new" {
		t.Fatalf("expected rotated refresh token, got %q", accounts[0].RefreshToken)
	}
}

func TestTokenCache_SaveRejectsMissingPartition(t *testing.T) {
	tc := newTestTokenCache(t)
	err := tc.SaveAccount(context.Background(), Account{Username: "nobody"})
	if !IsKind(err, KindPartitionKeyMissing) {
		t.Fatalf("expected %s, got %v", KindPartitionKeyMissing, err)
	}
}

func TestTokenCache_EmptyPartitionYieldsNothing(t *testing.T) {
	tc := newTestTokenCache(t)
	if accounts := tc.Accounts(context.Background(), ""); accounts != nil {
		t.Fatalf("empty partition key must read as empty, got %+v", accounts)
	}
}

func TestTokenCache_RemoveAccount(t *testing.T) {
	ctx := context.Background()
	tc := newTestTokenCache(t)

	if err := tc.SaveAccount(ctx, Account{HomeAccountID: "oid-1.tid-1"}); err != nil {
		t.Fatal(err)
	}
	tc.RemoveAccount(ctx, "oid-1.tid-1", "oid-1.tid-1")

	if accounts := tc.Accounts(ctx, "oid-1.tid-1"); len(accounts) != 0 {
		t.Fatalf("expected empty partition after removal, got %d accounts", len(accounts))
	}

	// Removing from a cold partition is a no-op.
	tc.RemoveAccount(ctx, "oid-2.tid-1", "oid-2.tid-1")
}

func TestMatchAccount_Strict(t *testing.T) {
	accounts := []Account{
		{HomeAccountID: "oid-1.tid-1"},
		{HomeAccountID: "oid-2.tid-1"},
	}

	if got, ok := matchAccount(accounts, "oid-2.tid-1", false); !ok || got.HomeAccountID != "oid-2.tid-1" {
		t.Fatalf("exact match failed: %+v ok=%v", got, ok)
	}
	if _, ok := matchAccount(accounts, "oid-3.tid-1", false); ok {
		t.Fatal("strict mode must not match a foreign id")
	}
	if _, ok := matchAccount(accounts, "", false); ok {
		t.Fatal("strict mode must not fall back without an id")
	}
	if _, ok := matchAccount(accounts, "oid-1", false); ok {
		t.Fatal("strict mode must not substring-match")
	}
}

func TestMatchAccount_Permissive(t *testing.T) {
	accounts := []Account{
		{HomeAccountID: "oid-1.tid-1"},
		{HomeAccountID: "oid-2.tid-1"},
	}

	// Substring tolerance both directions.
	if got, ok := matchAccount(accounts, "oid-2", true); !ok || got.HomeAccountID != "oid-2.tid-1" {
		t.Fatalf("permissive substring match failed: %+v ok=%v", got, ok)
	}
	if got, ok := matchAccount(accounts, "oid-1.tid-1.extra", true); !ok || got.HomeAccountID != "oid-1.tid-1" {
		t.Fatalf("permissive reverse substring match failed: %+v ok=%v", got, ok)
	}

	// First account when the session has no id.
	if got, ok := matchAccount(accounts, "", true); !ok || got.HomeAccountID != "oid-1.tid-1" {
		t.Fatalf("permissive first-account fallback failed: %+v ok=%v", got, ok)
	}

	if _, ok := matchAccount(nil, "", true); ok {
		t.Fatal("no accounts means no fallback")
	}
}

func TestTokenCache_SealedEntries(t *testing.T) {
	ctx := context.Background()
	client := cache.NewMemory(cache.Config{})
	adapter := NewCacheAdapter(client, time.Minute, nil, nil)

	sealer, err := secretbox.New("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatal(err)
	}
	tc := NewTokenCache(adapter, "client-1", time.Minute, nil).WithSealer(sealer)

	acct := Account{HomeAccountID: "oid-1.tid-1", RefreshToken: "rt-secret"}
	if err := tc.SaveAccount(ctx, acct); err != nil {
		t.Fatal(err)
	}

	// The raw cache value must not leak the refresh token.
	raw, err := client.Get(ctx, "oid-1.tid-1.client-1")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(raw, "rt-secret") {
		t.Fatal("refresh token stored in the clear")
	}

	accounts := tc.Accounts(ctx, "oid-1.tid-1")
	if len(accounts) != 1 || accounts[0].RefreshToken != "rt-secret" {
		t.Fatalf("sealed round trip failed: %+v", accounts)
	}

	// A cache without the sealer cannot read the entry, and vice versa a
	// plaintext entry does not open.
	plainTC := NewTokenCache(adapter, "client-1", time.Minute, nil)
	if got := plainTC.Accounts(ctx, "oid-1.tid-1"); got != nil {
		t.Fatalf("sealed entry must not parse without the key: %+v", got)
	}
}

func TestTokenCache_CorruptEntryReadsEmpty(t *testing.T) {
	ctx := context.Background()
	client := cache.NewMemory(cache.Config{})
	adapter := NewCacheAdapter(client, time.Minute, nil, nil)
	tc := NewTokenCache(adapter, "client-1", time.Minute, nil)

	if err := client.Set(ctx, "oid-1.tid-1.client-1", "{not json", time.Minute); err != nil {
		t.Fatal(err)
	}
	if accounts := tc.Accounts(ctx, "oid-1.tid-1"); accounts != nil {
		t.Fatalf("corrupt blob must read as empty, got %+v", accounts)
	}
}
