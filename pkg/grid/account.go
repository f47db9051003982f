// Package grid models the native API of the remote data grid: accounts,
// catalog entries, users, groups, permissions and the specialized sub-clients
// a connection hands out.
//
// Everything in this package speaks the grid's own vocabulary. Translation
// into the small domain error taxonomy callers see happens in pkg/gridfs.
package grid

import (
	"path"
	"strconv"
)

// AuthScheme is the authentication mechanism negotiated at login.
type AuthScheme string

const (
	AuthStandard AuthScheme = "STANDARD"
	AuthGSI      AuthScheme = "GSI"
	AuthKerberos AuthScheme = "KERBEROS"
	AuthPAM      AuthScheme = "PAM"
)

// AuthSchemes lists every supported scheme.
var AuthSchemes = []AuthScheme{AuthStandard, AuthGSI, AuthKerberos, AuthPAM}

// SSLPolicy is the client side TLS negotiation policy.
type SSLPolicy string

const (
	SSLRefuse   SSLPolicy = "CS_NEG_REFUSE"
	SSLRequire  SSLPolicy = "CS_NEG_REQUIRE"
	SSLDontCare SSLPolicy = "CS_NEG_DONT_CARE"
)

// SSLPolicies lists every supported policy.
var SSLPolicies = []SSLPolicy{SSLRefuse, SSLRequire, SSLDontCare}

// Account identifies a principal on a specific grid endpoint.
type Account struct {
	Host            string
	Port            int
	Zone            string
	Username        string
	Password        string
	HomeDirectory   string
	DefaultResource string
	AuthScheme      AuthScheme
	SSLPolicy       SSLPolicy
}

// Home returns the account's home collection. When HomeDirectory is unset the
// grid convention /<zone>/home/<user> is used.
func (a Account) Home() string {
	if a.HomeDirectory != "" {
		return a.HomeDirectory
	}
	return HomePath(a.Zone, a.Username)
}

// Endpoint returns host:port.
func (a Account) Endpoint() string {
	return a.Host + ":" + strconv.Itoa(a.Port)
}

// HomePath builds the conventional home collection of user in zone.
func HomePath(zone, user string) string {
	return path.Join("/", zone, "home", user)
}

// String never includes the password.
func (a Account) String() string {
	return a.Username + "#" + a.Zone + "@" + a.Endpoint()
}
