package orchestrator

import (
	"context"
	"strings"

	"go.uber.org/multierr"

	"github.com/MrSnakeDoc/fogroute/internal/domain"
	"github.com/MrSnakeDoc/fogroute/internal/logger"
)

type DeleteRequest struct {
	UserID                string `json:"userId"`
	PublishingInstanceID  string `json:"publishingInstanceId"`
	DestinationInstanceID string `json:"destinationInstanceId"`
	PublishingElementID   string `json:"publishingElementId"`
	DestinationElementID  string `json:"destinationElementId"`
	PublishingTrackID     string `json:"publishingTrackId"`
	DestinationTrackID    string `json:"destinationTrackId"`

	// IsNetworkConnection selects the relayed teardown. It is taken from
	// the caller as is, not derived from the instance ids.
	IsNetworkConnection bool `json:"isNetworkConnection"`
}

func (r DeleteRequest) validate() error {
	missing := missingFields(map[string]string{
		"userId":               r.UserID,
		"publishingInstanceId": r.PublishingInstanceID,
		"publishingElementId":  r.PublishingElementID,
		"destinationElementId": r.DestinationElementID,
	})
	if r.IsNetworkConnection && strings.TrimSpace(r.DestinationInstanceID) == "" {
		missing = append(missing, "destinationInstanceId")
	}
	if len(missing) > 0 {
		return domain.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}
	if r.PublishingElementID == r.DestinationElementID {
		return domain.Validation("element %q cannot route to itself", r.PublishingElementID)
	}
	return nil
}

type DeleteResult struct {
	PublishingInstanceID  string `json:"publishinginstanceid"`
	PublishingTrackID     string `json:"publishingtrackid"`
	PublishingElementID   string `json:"publishingelementid"`
	DestinationInstanceID string `json:"destinationinstanceid"`
	DestinationTrackID    string `json:"destinationtrackid"`
	DestinationElementID  string `json:"destinationelementid"`
	Warning               string `json:"warning,omitempty"`
}

func (r DeleteRequest) result(warnings []string) *DeleteResult {
	return &DeleteResult{
		PublishingInstanceID:  r.PublishingInstanceID,
		PublishingTrackID:     r.PublishingTrackID,
		PublishingElementID:   r.PublishingElementID,
		DestinationInstanceID: r.DestinationInstanceID,
		DestinationTrackID:    r.DestinationTrackID,
		DestinationElementID:  r.DestinationElementID,
		Warning:               strings.Join(warnings, "; "),
	}
}

// DeleteRoute removes a route. A direct route is one edge. A network
// connection also closes the satellite port and removes the relay
// endpoints and the pairing; a port that cannot be closed does not stop
// the local cleanup and is reported as a warning on the result.
func (o *Orchestrator) DeleteRoute(ctx context.Context, req DeleteRequest) (res *DeleteResult, err error) {
	f := o.begin("delete", req.PublishingElementID, req.DestinationElementID)
	defer func() { f.finish(err) }()

	f.enter(domain.StageValidating)
	if err := req.validate(); err != nil {
		return nil, f.fail(err)
	}

	sameInstance := req.DestinationInstanceID == "" || req.PublishingInstanceID == req.DestinationInstanceID
	if req.IsNetworkConnection == sameInstance {
		f.log.Warn("network connection flag disagrees with instance ids",
			logger.Bool("is_network_connection", req.IsNetworkConnection),
			logger.String("publishing_instance_id", req.PublishingInstanceID),
			logger.String("destination_instance_id", req.DestinationInstanceID))
	}

	f.enter(domain.StageResolving)
	if _, err := o.dir.GetUser(req.UserID); err != nil {
		if domain.IsNotFound(err) {
			return nil, f.fail(domain.Unauthorized("user %q is not known", req.UserID))
		}
		return nil, f.fail(err)
	}

	var warnings []string
	if req.IsNetworkConnection {
		warnings, err = o.deleteRelayed(ctx, f, req)
	} else {
		warnings, err = o.deleteDirect(ctx, f, req)
	}
	if err != nil {
		return nil, f.fail(err)
	}

	f.enter(domain.StageDone)
	f.log.Info("route deleted",
		logger.Bool("relayed", req.IsNetworkConnection),
		logger.Int("warnings", len(warnings)))
	return req.result(warnings), nil
}

func (o *Orchestrator) deleteDirect(ctx context.Context, f *flow, req DeleteRequest) ([]string, error) {
	unlock, err := o.lock(ctx, f, req.PublishingElementID, req.DestinationElementID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	route, err := o.store.FindRoute(ctx, req.PublishingInstanceID, req.PublishingInstanceID, req.PublishingElementID, req.DestinationElementID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.Conflict("route %s -> %s does not exist", req.PublishingElementID, req.DestinationElementID)
		}
		return nil, err
	}

	f.enter(domain.StagePersisting)
	if err := o.store.DeleteRoute(ctx, route.ID); err != nil {
		return nil, err
	}
	warnings := o.markRebuildAfterDelete(ctx, f, req.PublishingElementID, req.DestinationElementID)

	return append(warnings, o.notify(ctx, f, req.PublishingInstanceID)...), nil
}

func (o *Orchestrator) deleteRelayed(ctx context.Context, f *flow, req DeleteRequest) ([]string, error) {
	pubInstance, err := o.dir.GetInstance(req.PublishingInstanceID)
	if err != nil {
		return nil, err
	}
	destInstance, err := o.dir.GetInstance(req.DestinationInstanceID)
	if err != nil {
		return nil, err
	}

	unlock, err := o.lock(ctx, f, req.PublishingElementID, req.DestinationElementID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	pairing, err := o.store.FindPairing(ctx, pubInstance.ID, destInstance.ID, req.PublishingElementID, req.DestinationElementID)
	if err != nil {
		return nil, err
	}
	port, err := o.store.GetSatellitePort(ctx, pairing.SatellitePortID)
	if err != nil && !domain.IsNotFound(err) {
		return nil, err
	}

	var warnings []string

	f.enter(domain.StageReleasing)
	if port == nil {
		// An earlier attempt already released the port and dropped its record.
		f.log.Warn("satellite port record missing, resuming local cleanup",
			logger.String("pairing_id", pairing.ID),
			logger.String("satellite_port_id", pairing.SatellitePortID))
	} else if err := o.relay.Deallocate(ctx, port); err != nil {
		f.log.Warn("satellite port not closed, continuing local cleanup",
			logger.String("satellite_id", port.SatelliteID),
			logger.Int("port1", port.Port1),
			logger.Int("port2", port.Port2),
			logger.Error(err))
		warnings = append(warnings, err.Error())
	}

	f.enter(domain.StagePersisting)
	// The request may be cancelled; local cleanup runs to the end.
	cleanupCtx := context.WithoutCancel(ctx)
	errs := o.deleteEdge(cleanupCtx, pubInstance.ID, req.PublishingElementID, pairing.NetworkElementID1)
	errs = multierr.Append(errs, o.deleteEdge(cleanupCtx, destInstance.ID, pairing.NetworkElementID2, req.DestinationElementID))
	errs = multierr.Append(errs, o.store.DeleteElementInstance(cleanupCtx, pairing.NetworkElementID1))
	errs = multierr.Append(errs, o.store.DeleteElementInstance(cleanupCtx, pairing.NetworkElementID2))
	if errs != nil {
		// Pairing and port record stay so a retry can find them.
		return nil, domain.Internal("failed to remove relay records", errs)
	}
	if err := o.store.DeleteSatellitePort(cleanupCtx, pairing.SatellitePortID); err != nil {
		return nil, err
	}
	if err := o.store.DeletePairing(cleanupCtx, pairing.ID); err != nil {
		return nil, err
	}

	warnings = append(warnings, o.markRebuildAfterDelete(cleanupCtx, f, req.PublishingElementID, req.DestinationElementID)...)
	return append(warnings, o.notify(cleanupCtx, f, pubInstance.ID, destInstance.ID)...), nil
}

// deleteEdge removes the local edge between two elements of one instance
// if it is still there.
func (o *Orchestrator) deleteEdge(ctx context.Context, instanceID, pubElement, destElement string) error {
	route, err := o.store.FindRoute(ctx, instanceID, instanceID, pubElement, destElement)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil
		}
		return err
	}
	return o.store.DeleteRoute(ctx, route.ID)
}
