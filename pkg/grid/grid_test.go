package grid

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sdu-escience/gridgate/pkg/grid/errcode"
	"github.com/stretchr/testify/assert"
)

func TestAccountHome(t *testing.T) {
	a := Account{Host: "localhost", Port: 1247, Zone: "tempZone", Username: "alice", Password: "secret"}
	assert.Equal(t, "/tempZone/home/alice", a.Home())
	assert.Equal(t, "localhost:1247", a.Endpoint())
	assert.NotContains(t, a.String(), "secret")

	a.HomeDirectory = "/tempZone/projects/alice"
	assert.Equal(t, "/tempZone/projects/alice", a.Home())
}

func TestErrorCarriesCode(t *testing.T) {
	cause := errors.New("socket closed")
	err := fmt.Errorf("list: %w", Wrap(errcode.CatNoAccessPermission, cause, "no access to %s", "/z/x"))

	assert.True(t, errcode.CatNoAccessPermission.Matches(err))
	assert.ErrorIs(t, err, cause)

	var gerr *Error
	assert.ErrorAs(t, err, &gerr)
	assert.Equal(t, errcode.Catalog, gerr.Category())
	assert.Contains(t, gerr.Error(), "CAT_NO_ACCESS_PERMISSION")
}

func TestTicketExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, Ticket{}.Expired(now))
	assert.True(t, Ticket{ExpiresAt: now.Add(-time.Second)}.Expired(now))
	assert.True(t, Ticket{UsesLimit: 2, UsesCount: 2}.Expired(now))
}

func TestQuotaOver(t *testing.T) {
	assert.Equal(t, int64(0), Quota{Usage: 10}.Over())
	assert.Equal(t, int64(5), Quota{Limit: 10, Usage: 15}.Over())
}

func TestParseUserType(t *testing.T) {
	ut, err := ParseUserType("rodsadmin")
	assert.NoError(t, err)
	assert.Equal(t, RodsAdmin, ut)

	_, err = ParseUserType("root")
	assert.Error(t, err)
}
