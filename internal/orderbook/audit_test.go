package orderbook

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLoggerAppendAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "audit.ndjson")
	logger, err := NewAuditLogger(path)
	require.NoError(t, err)

	require.NoError(t, logger.Log(AuditEntry{ID: 1, Operation: "MAKE_INTENT", Status: "SUCCESS"}))
	require.NoError(t, logger.Log(AuditEntry{ID: 2, Operation: "TAKE_INTENT", Status: "SUCCESS"}))

	entries, err := logger.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(1), entries[0].ID)
	assert.Equal(t, "TAKE_INTENT", entries[1].Operation)
}

func TestAuditLoggerReadAllMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.ndjson")
	logger, err := NewAuditLogger(path)
	require.NoError(t, err)

	entries, err := logger.ReadAll()
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestAuditEntryWithSignatureEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.ndjson")
	logger, err := NewAuditLogger(path)
	require.NoError(t, err)

	event := &SignatureEvent{SubIntentID: 7, ChainType: ChainETH, Payload: "ab12", BigR: "r", S: "s"}
	require.NoError(t, logger.Log(AuditEntry{ID: 7, Operation: "EVENT", Status: "SUCCESS", Event: event}))

	entries, err := logger.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Event)
	assert.Equal(t, uint64(7), entries[0].Event.SubIntentID)
}
