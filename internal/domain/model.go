package domain

import "time"

// User is the account a route mutation is performed for.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Instance is an edge compute node ("fog instance") hosting element instances.
type Instance struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	TypeKey string `json:"type_key"`
}

// FabricType describes a kind of instance. NetworkElementKey names the
// template used for the relay endpoint placed on instances of this type.
type FabricType struct {
	Key               string `json:"key"`
	Name              string `json:"name"`
	NetworkElementKey string `json:"network_element_key"`
}

// NetworkElement is the template a relay endpoint element instance is built from.
type NetworkElement struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Track is a logical grouping of element instances forming one data pipeline.
type Track struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	UserID string `json:"user_id"`
}

// Satellite is a publicly reachable relay able to bridge two instances.
type Satellite struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	PublicIP string `json:"public_ip"`
	APIURL   string `json:"api_url"`
}

// ElementInstance is a deployable element running on a specific instance.
//
// Relay endpoints are element instances too: IsNetwork is set and the
// satellite fields describe which leased port the endpoint talks to.
type ElementInstance struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	ID         string `json:"id"`
	Name       string `json:"name"`
	ElementKey string `json:"element_key"`
	TypeName   string `json:"type_name"`

	// ─────────────────────────────
	// Placement
	// ─────────────────────────────

	TrackID    string `json:"track_id"`
	InstanceID string `json:"instance_id"`
	UserID     string `json:"user_id,omitempty"`

	// ─────────────────────────────
	// Deployment state
	// ─────────────────────────────

	// Rebuild tells the owning instance its local deployment must be regenerated.
	Rebuild bool `json:"rebuild"`

	// RebuildVersion grows on every rebuild mark and is the optimistic
	// concurrency token for rebuild updates.
	RebuildVersion int64 `json:"rebuild_version"`

	// ─────────────────────────────
	// Relay endpoint
	// ─────────────────────────────

	IsNetwork       bool   `json:"is_network"`
	SatellitePort   int    `json:"satellite_port,omitempty"`
	SatelliteDomain string `json:"satellite_domain,omitempty"`
	IsPublic        bool   `json:"is_public"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Route is one directed data-flow edge between two element instances.
//
// A cross-instance logical route is stored as two relay-hop edges, each
// local to one instance: publisher to relay endpoint A on the publishing
// instance, relay endpoint B to destination on the destination instance.
type Route struct {
	ID                    string    `json:"id"`
	PublishingInstanceID  string    `json:"publishing_instance_id"`
	PublishingElementID   string    `json:"publishing_element_id"`
	DestinationInstanceID string    `json:"destination_instance_id"`
	DestinationElementID  string    `json:"destination_element_id"`
	IsRelayHop            bool      `json:"is_relay_hop"`
	CreatedAt             time.Time `json:"created_at"`
}

// NetworkPairing binds the two relay endpoints of one circuit to its satellite port.
type NetworkPairing struct {
	ID                string    `json:"id"`
	InstanceID1       string    `json:"instance_id_1"`
	InstanceID2       string    `json:"instance_id_2"`
	ElementID1        string    `json:"element_id_1"`
	ElementID2        string    `json:"element_id_2"`
	NetworkElementID1 string    `json:"network_element_id_1"`
	NetworkElementID2 string    `json:"network_element_id_2"`
	SatellitePortID   string    `json:"satellite_port_id"`
	IsPublic          bool      `json:"is_public"`
	CreatedAt         time.Time `json:"created_at"`
}

// SatellitePort is a port pair leased on a satellite for one pairing.
type SatellitePort struct {
	ID          string    `json:"id"`
	SatelliteID string    `json:"satellite_id"`
	Port1       int       `json:"port1"`
	Port2       int       `json:"port2"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChangeCategory is one kind of configuration an instance re-reads when dirty.
type ChangeCategory string

const (
	ChangeContainerList   ChangeCategory = "containerList"
	ChangeContainerConfig ChangeCategory = "containerConfig"
	ChangeRouting         ChangeCategory = "routing"
)

// AllChangeCategories is what a route mutation marks dirty.
var AllChangeCategories = []ChangeCategory{ChangeContainerList, ChangeContainerConfig, ChangeRouting}

// ChangeTracking holds the per-category generation markers of one instance.
type ChangeTracking struct {
	InstanceID string                   `json:"instance_id"`
	Markers    map[ChangeCategory]int64 `json:"markers"`
}

// PendingAllocation records a leased satellite port together with every
// local record planned around it. It exists from the moment the remote
// port is open until the local records are committed, so a crash or a
// failed write can be compensated by releasing it.
type PendingAllocation struct {
	ID                    string    `json:"id"`
	SatelliteID           string    `json:"satellite_id"`
	Port1                 int       `json:"port1"`
	Port2                 int       `json:"port2"`
	SatellitePortID       string    `json:"satellite_port_id"`
	NetworkElementIDs     []string  `json:"network_element_ids"`
	RouteIDs              []string  `json:"route_ids"`
	PairingID             string    `json:"pairing_id"`
	PublishingInstanceID  string    `json:"publishing_instance_id"`
	DestinationInstanceID string    `json:"destination_instance_id"`
	CreatedAt             time.Time `json:"created_at"`
}
