package gridfs

import (
	"fmt"
	"strings"

	"github.com/sdu-escience/gridgate/pkg/grid"
)

// Permission is the access vocabulary exposed to callers. It maps one to one
// onto the grid's native read, write and own levels.
type Permission int

const (
	Read Permission = iota + 1
	ReadWrite
	Own
)

var permissionNames = map[Permission]string{
	Read:      "READ",
	ReadWrite: "READ_WRITE",
	Own:       "OWN",
}

func (p Permission) String() string {
	if n, ok := permissionNames[p]; ok {
		return n
	}
	return fmt.Sprintf("Permission(%d)", int(p))
}

// MarshalText encodes p by name so command records log "OWN" rather than 3.
func (p Permission) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts what ParsePermission accepts.
func (p *Permission) UnmarshalText(text []byte) error {
	parsed, err := ParsePermission(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Valid reports whether p is one of Read, ReadWrite or Own.
func (p Permission) Valid() bool {
	_, ok := permissionNames[p]
	return ok
}

// ParsePermission accepts READ, READ_WRITE and OWN in any case.
func ParsePermission(s string) (Permission, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "READ":
		return Read, nil
	case "READ_WRITE", "READWRITE", "WRITE":
		return ReadWrite, nil
	case "OWN":
		return Own, nil
	}
	return 0, fmt.Errorf("%w: unknown permission %q", ErrIllegalArgument, s)
}

// Native returns the grid's value for p.
func (p Permission) Native() grid.NativePermission {
	switch p {
	case Read:
		return grid.PermRead
	case ReadWrite:
		return grid.PermWrite
	case Own:
		return grid.PermOwn
	}
	return grid.PermNone
}

// permissionFromNative returns nil for the native "none" value.
func permissionFromNative(n grid.NativePermission) *Permission {
	var p Permission
	switch n {
	case grid.PermRead:
		p = Read
	case grid.PermWrite:
		p = ReadWrite
	case grid.PermOwn:
		p = Own
	default:
		return nil
	}
	return &p
}
