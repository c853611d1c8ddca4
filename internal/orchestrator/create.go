package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/fogroute/internal/domain"
	"github.com/MrSnakeDoc/fogroute/internal/logger"
	"github.com/MrSnakeDoc/fogroute/internal/relay"
)

type CreateRequest struct {
	UserID                string `json:"userId"`
	PublishingInstanceID  string `json:"publishingInstanceId"`
	PublishingElementID   string `json:"publishingElementId"`
	DestinationInstanceID string `json:"destinationInstanceId"`
	DestinationElementID  string `json:"destinationElementId"`
	PublishingTrackID     string `json:"publishingTrackId"`
}

func (r CreateRequest) validate() error {
	missing := missingFields(map[string]string{
		"userId":                r.UserID,
		"publishingInstanceId":  r.PublishingInstanceID,
		"publishingElementId":   r.PublishingElementID,
		"destinationInstanceId": r.DestinationInstanceID,
		"destinationElementId":  r.DestinationElementID,
	})
	if len(missing) > 0 {
		return domain.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}
	if r.PublishingElementID == r.DestinationElementID {
		return domain.Validation("element %q cannot route to itself", r.PublishingElementID)
	}
	return nil
}

// CreateResult describes the destination end of the new route.
type CreateResult struct {
	ElementID       string `json:"elementId"`
	ElementName     string `json:"elementName"`
	ElementTypeName string `json:"elementTypeName"`
	TrackID         string `json:"trackId"`
	TrackName       string `json:"trackName"`
	InstanceID      string `json:"instanceId"`
	InstanceName    string `json:"instanceName"`
	Warning         string `json:"warning,omitempty"`
}

// createPlan is everything resolved before the first side effect.
type createPlan struct {
	pubInstance  domain.Instance
	destInstance domain.Instance
	pubElement   *domain.ElementInstance
	destElement  *domain.ElementInstance
	destTrack    domain.Track

	// relay endpoint templates, cross-instance only
	pubTemplate  domain.NetworkElement
	destTemplate domain.NetworkElement
}

func (p *createPlan) crossInstance() bool {
	return p.pubInstance.ID != p.destInstance.ID
}

func (p *createPlan) result(warnings []string) *CreateResult {
	return &CreateResult{
		ElementID:       p.destElement.ID,
		ElementName:     p.destElement.Name,
		ElementTypeName: p.destElement.TypeName,
		TrackID:         p.destElement.TrackID,
		TrackName:       p.destTrack.Name,
		InstanceID:      p.destInstance.ID,
		InstanceName:    p.destInstance.Name,
		Warning:         strings.Join(warnings, "; "),
	}
}

// CreateRoute connects a publishing element instance to a destination
// element instance. Same-instance routes get one direct edge; otherwise a
// relay circuit is leased and two relay-hop edges plus a network pairing
// are stored. Nothing is written before every reference is resolved, and
// nothing local survives a failure after the circuit is leased.
func (o *Orchestrator) CreateRoute(ctx context.Context, req CreateRequest) (res *CreateResult, err error) {
	f := o.begin("create", req.PublishingElementID, req.DestinationElementID)
	defer func() { f.finish(err) }()

	f.enter(domain.StageValidating)
	if err := req.validate(); err != nil {
		return nil, f.fail(err)
	}

	f.enter(domain.StageResolving)
	plan, err := o.resolveCreate(ctx, req)
	if err != nil {
		return nil, f.fail(err)
	}

	unlock, err := o.lock(ctx, f, req.PublishingElementID, req.DestinationElementID)
	if err != nil {
		return nil, f.fail(err)
	}
	defer unlock()

	if err := o.ensureAbsent(ctx, plan); err != nil {
		return nil, f.fail(err)
	}

	var notifyIDs []string
	if plan.crossInstance() {
		err = o.createRelayed(ctx, f, req, plan)
		notifyIDs = []string{plan.pubInstance.ID, plan.destInstance.ID}
	} else {
		err = o.createDirect(ctx, f, plan)
		notifyIDs = []string{plan.pubInstance.ID}
	}
	if err != nil {
		return nil, f.fail(err)
	}

	warnings := o.notify(ctx, f, notifyIDs...)
	f.enter(domain.StageDone)
	f.log.Info("route created",
		logger.Bool("relayed", plan.crossInstance()),
		logger.String("publishing_instance_id", plan.pubInstance.ID),
		logger.String("destination_instance_id", plan.destInstance.ID))
	return plan.result(warnings), nil
}

func (o *Orchestrator) resolveCreate(ctx context.Context, req CreateRequest) (*createPlan, error) {
	if _, err := o.dir.GetUser(req.UserID); err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.Unauthorized("user %q is not known", req.UserID)
		}
		return nil, err
	}

	plan := &createPlan{}
	var err error
	if plan.pubInstance, err = o.dir.GetInstance(req.PublishingInstanceID); err != nil {
		return nil, err
	}
	if plan.destInstance, err = o.dir.GetInstance(req.DestinationInstanceID); err != nil {
		return nil, err
	}
	if plan.pubElement, err = o.resolveElement(ctx, req.PublishingElementID, plan.pubInstance.ID); err != nil {
		return nil, err
	}
	if plan.destElement, err = o.resolveElement(ctx, req.DestinationElementID, plan.destInstance.ID); err != nil {
		return nil, err
	}
	if plan.destElement.TrackID != "" {
		if plan.destTrack, err = o.dir.GetTrack(plan.destElement.TrackID); err != nil {
			return nil, err
		}
	}

	if plan.crossInstance() {
		if plan.pubTemplate, err = o.templateFor(plan.pubInstance); err != nil {
			return nil, err
		}
		if plan.destTemplate, err = o.templateFor(plan.destInstance); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

func (o *Orchestrator) resolveElement(ctx context.Context, id, instanceID string) (*domain.ElementInstance, error) {
	el, err := o.dir.GetElementInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if el.InstanceID != instanceID {
		return nil, domain.Validation("element instance %q runs on %q, not %q", id, el.InstanceID, instanceID)
	}
	return el, nil
}

func (o *Orchestrator) templateFor(inst domain.Instance) (domain.NetworkElement, error) {
	if _, err := o.dir.GetFabricType(inst.TypeKey); err != nil {
		return domain.NetworkElement{}, err
	}
	return o.dir.GetNetworkElementTemplate(inst.TypeKey)
}

// ensureAbsent rejects a route that already exists.
func (o *Orchestrator) ensureAbsent(ctx context.Context, plan *createPlan) error {
	pub, dest := plan.pubElement.ID, plan.destElement.ID
	var err error
	if plan.crossInstance() {
		_, err = o.store.FindPairing(ctx, plan.pubInstance.ID, plan.destInstance.ID, pub, dest)
	} else {
		_, err = o.store.FindRoute(ctx, plan.pubInstance.ID, plan.pubInstance.ID, pub, dest)
	}
	switch {
	case err == nil:
		return domain.Conflict("route %s -> %s already exists", pub, dest)
	case domain.IsNotFound(err):
		return nil
	default:
		return err
	}
}

func (o *Orchestrator) createDirect(ctx context.Context, f *flow, plan *createPlan) error {
	f.enter(domain.StagePersisting)
	route := &domain.Route{
		ID:                    o.newID(),
		PublishingInstanceID:  plan.pubInstance.ID,
		PublishingElementID:   plan.pubElement.ID,
		DestinationInstanceID: plan.pubInstance.ID,
		DestinationElementID:  plan.destElement.ID,
	}
	if err := o.store.CreateRoute(ctx, route); err != nil {
		return err
	}
	if err := o.markRebuild(ctx, plan.pubElement.ID, plan.destElement.ID); err != nil {
		if delErr := o.store.DeleteRoute(context.WithoutCancel(ctx), route.ID); delErr != nil {
			return fmt.Errorf("%w (route %s could not be removed: %v)", err, route.ID, delErr)
		}
		return err
	}
	return nil
}

func (o *Orchestrator) createRelayed(ctx context.Context, f *flow, req CreateRequest, plan *createPlan) error {
	f.enter(domain.StageAllocating)
	alloc, err := o.relay.Allocate(ctx, relay.Request{
		Publishing: relay.Side{
			InstanceID: plan.pubInstance.ID,
			ElementID:  plan.pubElement.ID,
			Template:   plan.pubTemplate,
			TrackID:    req.PublishingTrackID,
			UserID:     req.UserID,
		},
		Destination: relay.Side{
			InstanceID: plan.destInstance.ID,
			ElementID:  plan.destElement.ID,
			Template:   plan.destTemplate,
			TrackID:    req.PublishingTrackID,
			UserID:     req.UserID,
		},
	})
	if err != nil {
		return err
	}

	f.enter(domain.StagePersisting)
	if err := o.persistRelayed(ctx, plan, alloc); err != nil {
		// The request may be cancelled; compensation must still run.
		relErr := o.relay.Release(context.WithoutCancel(ctx), alloc.Pending, relay.ReleasedByCompensation)
		if relErr != nil {
			f.log.Error("compensation failed, pending allocation left for reconciler",
				logger.String("pending_id", alloc.Pending.ID),
				logger.Error(relErr))
			return fmt.Errorf("%w (compensation of %s failed: %v)", err, alloc.Pending.ID, relErr)
		}
		f.log.Warn("relay circuit released after failed write", logger.String("pending_id", alloc.Pending.ID))
		return err
	}
	return nil
}

func (o *Orchestrator) persistRelayed(ctx context.Context, plan *createPlan, alloc *relay.Allocation) error {
	pubHop := &domain.Route{
		ID:                    alloc.PublishingRouteID(),
		PublishingInstanceID:  plan.pubInstance.ID,
		PublishingElementID:   plan.pubElement.ID,
		DestinationInstanceID: plan.pubInstance.ID,
		DestinationElementID:  alloc.PublishingEndpoint.ID,
		IsRelayHop:            true,
	}
	destHop := &domain.Route{
		ID:                    alloc.DestinationRouteID(),
		PublishingInstanceID:  plan.destInstance.ID,
		PublishingElementID:   alloc.DestinationEndpoint.ID,
		DestinationInstanceID: plan.destInstance.ID,
		DestinationElementID:  plan.destElement.ID,
		IsRelayHop:            true,
	}
	pairing := &domain.NetworkPairing{
		ID:                alloc.Pending.PairingID,
		InstanceID1:       plan.pubInstance.ID,
		InstanceID2:       plan.destInstance.ID,
		ElementID1:        plan.pubElement.ID,
		ElementID2:        plan.destElement.ID,
		NetworkElementID1: alloc.PublishingEndpoint.ID,
		NetworkElementID2: alloc.DestinationEndpoint.ID,
		SatellitePortID:   alloc.Port.ID,
	}

	if err := o.store.CreateRoute(ctx, pubHop); err != nil {
		return err
	}
	if err := o.store.CreateRoute(ctx, destHop); err != nil {
		return err
	}
	if err := o.store.CreatePairing(ctx, pairing); err != nil {
		return err
	}
	// Relay endpoints are created already flagged for rebuild.
	if err := o.markRebuild(ctx, plan.pubElement.ID, plan.destElement.ID); err != nil {
		return err
	}
	return o.relay.Commit(ctx, alloc.Pending.ID)
}

func missingFields(fields map[string]string) []string {
	var missing []string
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
