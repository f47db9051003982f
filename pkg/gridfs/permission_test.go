package gridfs

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sdu-escience/gridgate/pkg/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermission_TextEncoding(t *testing.T) {
	data, err := json.Marshal([]any{"/tempZone/p", Own, "alice"})
	require.NoError(t, err)
	assert.JSONEq(t, `["/tempZone/p","OWN","alice"]`, string(data))

	var p Permission
	require.NoError(t, json.Unmarshal([]byte(`"read_write"`), &p))
	assert.Equal(t, ReadWrite, p)
	assert.Error(t, json.Unmarshal([]byte(`"sudo"`), &p))
}

func TestGrantIsLoggedByName(t *testing.T) {
	e := newEnv(t)
	files, _ := e.admin(t)
	e.alice(t)
	ctx := context.Background()

	p := "/tempZone/home/rods/shared"
	writeFile(t, files, p, []byte("shared"))
	require.NoError(t, files.GrantPermissionsOnObject(ctx, p, Own, "alice"))

	var buf bytes.Buffer
	records := e.access.Records()
	access := records[len(records)-1].(command.Context)
	require.NoError(t, json.NewEncoder(&buf).Encode(access))
	assert.Contains(t, buf.String(), `"args":["/tempZone/home/rods/shared","OWN","alice"]`)
}
