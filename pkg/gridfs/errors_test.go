package gridfs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sdu-escience/gridgate/pkg/grid"
	"github.com/sdu-escience/gridgate/pkg/grid/errcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorsMatchOneSentinel(t *testing.T) {
	cause := errors.New("native")
	sentinels := []error{ErrNotFound, ErrAlreadyExists, ErrAccessDenied, ErrCollectionNotEmpty, ErrGateway}

	tests := []struct {
		err  error
		want error
	}{
		{ObjectNotFound("/a", cause), ErrNotFound},
		{UserNotFound("u", cause), ErrNotFound},
		{GroupNotFound("g", cause), ErrNotFound},
		{ObjectAlreadyExists("/a", cause), ErrAlreadyExists},
		{UserAlreadyExists("u", cause), ErrAlreadyExists},
		{GroupAlreadyExists("g", cause), ErrAlreadyExists},
		{NewAccessDenied("/a", cause), ErrAccessDenied},
		{NewCollectionNotEmpty("/a", cause), ErrCollectionNotEmpty},
		{&GatewayError{Cause: cause}, ErrGateway},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			for _, s := range sentinels {
				assert.Equal(t, s == tt.want, errors.Is(tt.err, s), "sentinel %v", s)
			}
			assert.ErrorIs(t, tt.err, cause)

			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.want)
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "Object not found: /x", ObjectNotFound("/x", nil).Error())
	assert.Equal(t, "UserGroup already exists: lab", GroupAlreadyExists("lab", nil).Error())
	assert.Equal(t, "access denied: /x", NewAccessDenied("/x", nil).Error())
}

func TestWrapNative(t *testing.T) {
	native := grid.Errorf(errcode.CatSQLErr, "database went away")

	err := wrapNative(fmt.Errorf("call: %w", native))
	var ge *GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, int32(errcode.CatSQLErr), ge.Code)
	assert.Equal(t, errcode.Catalog, ge.Category)
	assert.Equal(t, "database went away", ge.Message)
	assert.ErrorIs(t, err, native)
	assert.Contains(t, err.Error(), "CAT_SQL_ERR")

	plain := errors.New("socket reset")
	err = wrapNative(plain)
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, int32(0), ge.Code)
	assert.Equal(t, errcode.Unknown, ge.Category)

	assert.NoError(t, wrapNative(nil))

	for _, passthrough := range []error{
		ObjectNotFound("/a", nil),
		fmt.Errorf("%w: closed", ErrIllegalState),
		fmt.Errorf("%w: bad", ErrIllegalArgument),
		context.Canceled,
		ge,
	} {
		assert.Same(t, passthrough, wrapNative(passthrough))
	}
}

func TestTranslateObject(t *testing.T) {
	tests := []struct {
		code errcode.Code
		want error
	}{
		{errcode.UserFileDoesNotExist, ErrNotFound},
		{errcode.CatUnknownFile, ErrNotFound},
		{errcode.CatUnknownCollection, ErrNotFound},
		{errcode.CatNoRowsFound, ErrNotFound},
		{errcode.CatNoAccessPermission, ErrAccessDenied},
		{errcode.CatalogAlreadyHasItem, ErrAlreadyExists},
		{errcode.CatCollectionNotEmpty, ErrCollectionNotEmpty},
		{errcode.CatInsufficientPrivilege, ErrGateway},
		{errcode.UnixFileReadErr, ErrGateway},
	}
	for _, tt := range tests {
		t.Run(tt.code.Name(), func(t *testing.T) {
			err := translateObject("/p", grid.Errorf(tt.code, "x"))
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.NoError(t, translateObject("/p", nil))
}

func TestParsePermission(t *testing.T) {
	tests := []struct {
		in   string
		want Permission
	}{
		{"READ", Read},
		{"read", Read},
		{"READ_WRITE", ReadWrite},
		{"write", ReadWrite},
		{" Own ", Own},
	}
	for _, tt := range tests {
		got, err := ParsePermission(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParsePermission("execute")
	assert.ErrorIs(t, err, ErrIllegalArgument)

	assert.Equal(t, grid.PermRead, Read.Native())
	assert.Equal(t, grid.PermWrite, ReadWrite.Native())
	assert.Equal(t, grid.PermOwn, Own.Native())
	assert.Equal(t, "READ_WRITE", ReadWrite.String())
	assert.Nil(t, permissionFromNative(grid.PermNone))
	assert.Equal(t, Own, *permissionFromNative(grid.PermOwn))
}
