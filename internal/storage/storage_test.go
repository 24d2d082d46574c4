package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := ImportKey(uuid.New(), "contacts.csv")
	require.NoError(t, store.Put(ctx, key, strings.NewReader("phone,first_name\n+15551234567,Ada\n")))

	rc, err := store.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Contains(t, string(data), "+15551234567")

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.Error(t, err)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	err = store.Put(ctx, "../outside.csv", strings.NewReader("x"))
	assert.Error(t, err)
	_, err = store.Get(ctx, "/etc/passwd")
	assert.Error(t, err)
}

func TestImportKeyShape(t *testing.T) {
	orgID := uuid.New()
	key := ImportKey(orgID, "My Contacts.csv")
	assert.True(t, strings.HasPrefix(key, "imports/"+orgID.String()+"/"))
	assert.True(t, strings.HasSuffix(key, "_My_Contacts.csv"))
	assert.NotContains(t, key, " ")
}
