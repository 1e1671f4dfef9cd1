package db

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupHandler(t *testing.T) {
	database, _ := setupTestDB(t)

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	rec := httptest.NewRecorder()
	database.handleBackup(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "backup-")
	assert.True(t, strings.HasSuffix(rec.Header().Get("Content-Disposition"), ".db.gz"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "SQLite format 3"))
}

func TestAttachAdminRoutes(t *testing.T) {
	database, _ := setupTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, database.AttachAdminRoutes(mux))
}
