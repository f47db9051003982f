package badger

import (
	"encoding/binary"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so prefixed keys organize the catalog into
// logical namespaces. Paths and names never contain NUL, so "\x00" separates
// the two halves of composite keys and keeps prefix scans exact
// ("/zone" never matches "/zone2").
//
// Data Type      Prefix   Key Format                        Value Type
// ========================================================================
// Objects        "o:"     o:<path>                          objectRecord (XDR)
// Children       "c:"     c:<parent>\x00<name>              empty
// ACL entries    "a:"     a:<path>\x00<principal>           uint32 (big endian)
// Users          "u:"     u:<name>                          userRecord (XDR)
// Groups         "g:"     g:<name>                          groupRecord (XDR)
// Members        "m:"     m:<group>\x00<user>               empty
// Tickets        "t:"     t:<id>                            ticketRecord (XDR)
// Audit log      "l:"     l:<seq uint64 big endian>         auditRecord (XDR)
// Audit counter  "seq:"   seq:audit                         uint64 (big endian)

const (
	prefixObject = "o:"
	prefixChild  = "c:"
	prefixACL    = "a:"
	prefixUser   = "u:"
	prefixGroup  = "g:"
	prefixMember = "m:"
	prefixTicket = "t:"
	prefixAudit  = "l:"

	keySeparator = "\x00"
)

var keyAuditSeq = []byte("seq:audit")

func keyObject(path string) []byte {
	return []byte(prefixObject + path)
}

func keyChild(parent, name string) []byte {
	return []byte(prefixChild + parent + keySeparator + name)
}

func keyChildPrefix(parent string) []byte {
	return []byte(prefixChild + parent + keySeparator)
}

func keyACL(path, principal string) []byte {
	return []byte(prefixACL + path + keySeparator + principal)
}

func keyACLPrefix(path string) []byte {
	return []byte(prefixACL + path + keySeparator)
}

func keyUser(name string) []byte {
	return []byte(prefixUser + name)
}

func keyGroup(name string) []byte {
	return []byte(prefixGroup + name)
}

func keyMember(group, user string) []byte {
	return []byte(prefixMember + group + keySeparator + user)
}

func keyMemberPrefix(group string) []byte {
	return []byte(prefixMember + group + keySeparator)
}

func keyTicket(id string) []byte {
	return []byte(prefixTicket + id)
}

func keyAudit(seq uint64) []byte {
	key := make([]byte, len(prefixAudit)+8)
	copy(key, prefixAudit)
	binary.BigEndian.PutUint64(key[len(prefixAudit):], seq)
	return key
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func encodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}
