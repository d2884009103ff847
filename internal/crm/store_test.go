package crm

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "crm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestGetCustomer(t *testing.T) {
	store := openTestStore(t)

	c, err := store.GetCustomer(context.Background(), 102)
	require.NoError(t, err)
	assert.Equal(t, "Jordan Blake", c.Name)
	assert.Equal(t, "active", c.AccountStatus)

	_, err = store.GetCustomer(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetSubscriptions(t *testing.T) {
	store := openTestStore(t)

	subs, err := store.GetSubscriptions(context.Background(), 102)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "Mobile Unlimited", subs[0].PlanName)

	subs, err = store.GetSubscriptions(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestGetDataUsageTotals(t *testing.T) {
	store := openTestStore(t)

	usage, err := store.GetDataUsage(context.Background(), 102)
	require.NoError(t, err)
	assert.Equal(t, 102, usage.CustomerID)
	require.NotEmpty(t, usage.Days)
	// Newest day first.
	assert.Equal(t, "2026-08-22", usage.Days[0].Day)
	assert.InDelta(t, 58.6, usage.TotalGB, 1e-9)
	assert.InDelta(t, 54.7, usage.TotalRoamingGB, 1e-9)
}

func TestGetBillingSummaryDisputed(t *testing.T) {
	store := openTestStore(t)

	billing, err := store.GetBillingSummary(context.Background(), 103)
	require.NoError(t, err)
	require.Len(t, billing.Charges, 4)
	assert.InDelta(t, 89.99+89.99+129.99, billing.DisputedAmount, 1e-9)
	assert.Greater(t, billing.TotalAmount, billing.DisputedAmount)
}

func TestGetSecurityLogsOrder(t *testing.T) {
	store := openTestStore(t)

	logs, err := store.GetSecurityLogs(context.Background(), 102)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "sim_swap_requested", logs[0].Event)
}

func TestSearchKnowledgeBase(t *testing.T) {
	store := openTestStore(t)

	articles, err := store.SearchKnowledgeBase(context.Background(), "roaming")
	require.NoError(t, err)
	require.NotEmpty(t, articles)
	assert.Equal(t, "Roaming overage policy", articles[0].Title)

	articles, err = store.SearchKnowledgeBase(context.Background(), "no such topic anywhere")
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestSetAccountStatus(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetAccountStatus(ctx, 101, "locked"))
	c, err := store.GetCustomer(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, "locked", c.AccountStatus)

	require.NoError(t, store.SetAccountStatus(ctx, 101, "active"))
	assert.ErrorIs(t, store.SetAccountStatus(ctx, 999, "locked"), ErrNotFound)
}

func TestSeedRunsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crm.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening must not duplicate seed rows.
	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	subs, err := store.GetSubscriptions(context.Background(), 102)
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}
