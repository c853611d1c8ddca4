package redis

import "strings"

const (
	keyPrefix = "fogroute:"

	KeyPrefixElement       = keyPrefix + "element:"
	KeyAllElements         = keyPrefix + "elements:all"
	KeyPrefixRoute         = keyPrefix + "route:"
	KeyPrefixRouteLookup   = keyPrefix + "route:lookup:"
	KeyPrefixInstanceRoute = keyPrefix + "routes:instance:"
	KeyAllRoutes           = keyPrefix + "routes:all"
	KeyRouteSeq            = keyPrefix + "routes:seq"
	KeyPrefixPairing       = keyPrefix + "pairing:"
	KeyPrefixPairingLookup = keyPrefix + "pairing:lookup:"
	KeyAllPairings         = keyPrefix + "pairings:all"
	KeyPrefixSatPort       = keyPrefix + "satport:"
	KeyAllSatPorts         = keyPrefix + "satports:all"
	KeyPrefixChanges       = keyPrefix + "changes:"
	KeyPrefixPending       = keyPrefix + "pending:"
	KeyAllPending          = keyPrefix + "pending:all"
	KeyPrefixLock          = keyPrefix + "lock:"
)

func ElementKey(id string) string { return KeyPrefixElement + id }
func RouteKey(id string) string   { return KeyPrefixRoute + id }
func PairingKey(id string) string { return KeyPrefixPairing + id }
func SatPortKey(id string) string { return KeyPrefixSatPort + id }
func PendingKey(id string) string { return KeyPrefixPending + id }
func LockKey(name string) string  { return KeyPrefixLock + name }

// ChangesKey returns the hash holding an instance's change markers.
func ChangesKey(instanceID string) string { return KeyPrefixChanges + instanceID }

// InstanceRoutesKey returns the sorted set of route ids published from an instance.
func InstanceRoutesKey(instanceID string) string { return KeyPrefixInstanceRoute + instanceID }

// RouteLookupKey indexes an edge by its four endpoints.
func RouteLookupKey(pubInstance, destInstance, pubElement, destElement string) string {
	return KeyPrefixRouteLookup + joinParts(pubInstance, destInstance, pubElement, destElement)
}

// PairingLookupKey indexes a pairing by the logical route it serves.
func PairingLookupKey(instance1, instance2, element1, element2 string) string {
	return KeyPrefixPairingLookup + joinParts(instance1, instance2, element1, element2)
}

func joinParts(parts ...string) string {
	return strings.Join(parts, "|")
}
