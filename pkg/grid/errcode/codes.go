package errcode

import (
	"errors"
	"strconv"
)

// Code is a single, well-known native status code.
type Code int32

// Coded is implemented by errors that carry a native status code.
type Coded interface {
	NativeCode() int32
}

const (
	SysInvalidInputParam     Code = -130_000
	SysNotSupported          Code = -169_000
	UserSockConnectErr       Code = -305_000
	UserFileDoesNotExist     Code = -310_000
	OverwriteWithoutForce    Code = -312_000
	UserInputPathErr         Code = -317_000
	UnixFileReadErr          Code = -516_000
	UnixFileWriteErr         Code = -517_000
	CatSQLErr                Code = -806_000
	CatNoRowsFound           Code = -808_000
	CatalogAlreadyHasItem    Code = -809_000
	CatUnknownCollection     Code = -814_000
	CatInvalidArgument       Code = -816_000
	CatUnknownFile           Code = -817_000
	CatNoAccessPermission    Code = -818_000
	CatCollectionNotEmpty    Code = -821_000
	CatInvalidAuthentication Code = -826_000
	CatInvalidUser           Code = -827_000
	CatInvalidZone           Code = -828_000
	CatInsufficientPrivilege Code = -830_000
	CatInvalidGroup          Code = -831_000
	CatUserNotInGroup        Code = -838_000
	CatUnknownSpecificQuery  Code = -853_000
	CatTicketInvalid         Code = -890_000
	CatTicketExpired         Code = -891_000
	NoRuleFoundErr           Code = -1_102_000
)

var names = map[Code]string{
	SysInvalidInputParam:     "SYS_INVALID_INPUT_PARAM",
	SysNotSupported:          "SYS_NOT_SUPPORTED",
	UserFileDoesNotExist:     "USER_FILE_DOES_NOT_EXIST",
	UserSockConnectErr:       "USER_SOCK_CONNECT_ERR",
	OverwriteWithoutForce:    "OVERWRITE_WITHOUT_FORCE_FLAG",
	UserInputPathErr:         "USER_INPUT_PATH_ERR",
	UnixFileReadErr:          "UNIX_FILE_READ_ERR",
	UnixFileWriteErr:         "UNIX_FILE_WRITE_ERR",
	CatNoRowsFound:           "CAT_NO_ROWS_FOUND",
	CatalogAlreadyHasItem:    "CATALOG_ALREADY_HAS_ITEM_BY_THAT_NAME",
	CatUnknownCollection:     "CAT_UNKNOWN_COLLECTION",
	CatInvalidArgument:       "CAT_INVALID_ARGUMENT",
	CatUnknownFile:           "CAT_UNKNOWN_FILE",
	CatNoAccessPermission:    "CAT_NO_ACCESS_PERMISSION",
	CatCollectionNotEmpty:    "CAT_COLLECTION_NOT_EMPTY",
	CatSQLErr:                "CAT_SQL_ERR",
	CatInvalidAuthentication: "CAT_INVALID_AUTHENTICATION",
	CatInvalidUser:           "CAT_INVALID_USER",
	CatInvalidZone:           "CAT_INVALID_ZONE",
	CatInsufficientPrivilege: "CAT_INSUFFICIENT_PRIVILEGE_LEVEL",
	CatInvalidGroup:          "CAT_INVALID_GROUP",
	CatUnknownSpecificQuery:  "CAT_UNKNOWN_SPECIFIC_QUERY",
	CatUserNotInGroup:        "CAT_USER_NOT_IN_GROUP",
	CatTicketInvalid:         "CAT_TICKET_INVALID",
	CatTicketExpired:         "CAT_TICKET_EXPIRED",
	NoRuleFoundErr:           "NO_RULE_FOUND_ERR",
}

// Name returns the symbolic name of a well-known code.
func (c Code) Name() string {
	if n, ok := names[c]; ok {
		return n
	}
	return "UNKNOWN(" + strconv.FormatInt(int64(c), 10) + ")"
}

func (c Code) String() string {
	return c.Name()
}

// Category returns the reserved block the code belongs to.
func (c Code) Category() Category {
	return Classify(int64(c))
}

// Matches reports whether err, or anything it wraps, carries exactly this
// code. Sign differences are ignored.
func (c Code) Matches(err error) bool {
	code, ok := NativeCode(err)
	if !ok {
		return false
	}
	return abs(int64(code)) == abs(int64(c))
}

// NativeCode extracts the native status code carried by err.
func NativeCode(err error) (int32, bool) {
	var coded Coded
	if err == nil || !errors.As(err, &coded) {
		return 0, false
	}
	return coded.NativeCode(), true
}

// Lookup returns the well-known code with the given value, if any.
func Lookup(code int32) (Code, bool) {
	c := Code(code)
	if c > 0 {
		c = -c
	}
	_, ok := names[c]
	return c, ok
}

// MatchesAny reports whether err carries any of the given codes.
func MatchesAny(err error, codes ...Code) bool {
	for _, c := range codes {
		if c.Matches(err) {
			return true
		}
	}
	return false
}
