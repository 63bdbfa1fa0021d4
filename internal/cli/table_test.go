package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tableside/internal/model"
)

func TestTableLifecycle(t *testing.T) {
	db := tempDB(t)

	tbl := runJSON[model.Table](t, db, "table", "add", "5")
	assert.Equal(t, 5, tbl.Number)
	assert.Equal(t, model.TableAvailable, tbl.Status)

	errResp, code := runJSONError(t, db, "table", "add", "5")
	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, "E_DUPLICATE_TABLE", errResp.Code)

	occupied := runJSON[model.Table](t, db, "table", "status", "5", "occupied")
	assert.Equal(t, model.TableOccupied, occupied.Status)
	require.NotEmpty(t, occupied.AccessToken)

	link := runJSON[map[string]any](t, db, "table", "link", "5", "--base-url", "https://menu.example.com")
	assert.Equal(t, "https://menu.example.com/tables/5?token="+occupied.AccessToken, link["link"])

	freed := runJSON[model.Table](t, db, "table", "status", "5", "Available")
	assert.Empty(t, freed.AccessToken)

	errResp, code = runJSONError(t, db, "table", "link", "5")
	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, "E_INVALID_TABLE", errResp.Code)

	runJSON[model.Table](t, db, "table", "add", "2")
	list := runJSON[[]model.Table](t, db, "table", "ls")
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].Number)

	runJSON[model.Table](t, db, "table", "rm", "5")
	assert.Len(t, runJSON[[]model.Table](t, db, "table", "ls"), 1)
}

func TestTableCommands_Errors(t *testing.T) {
	db := tempDB(t)

	errResp, code := runJSONError(t, db, "table", "add", "0")
	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, "E_INVALID_TABLE", errResp.Code)

	errResp, code = runJSONError(t, db, "table", "add", "seven")
	assert.Equal(t, ExitCommandError, code)
	assert.Equal(t, "E_COMMAND", errResp.Code)

	errResp, code = runJSONError(t, db, "table", "status", "9", "Occupied")
	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, "E_NOT_FOUND", errResp.Code)

	runJSON[model.Table](t, db, "table", "add", "1")
	errResp, code = runJSONError(t, db, "table", "status", "1", "Closed")
	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, "E_INVALID_TABLE", errResp.Code)
}

func TestTableLs_Text(t *testing.T) {
	db := tempDB(t)

	stdout, _, err := execute(t, "table", "ls", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "No tables.", strings.TrimSpace(stdout))

	runJSON[model.Table](t, db, "table", "add", "12")
	stdout, _, err = execute(t, "table", "ls", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "12")
	assert.Contains(t, stdout, "Available")
}
