package domain

const (
	// ReceiverViewer labels the instance's stream viewer as a receiver.
	ReceiverViewer = "viewer"
	// ReceiverDebug labels the instance's debug console as a receiver.
	ReceiverDebug = "debug"
)

// ContainerRoutes lists every receiver of one container's output.
type ContainerRoutes struct {
	Container string   `json:"container"`
	Receivers []string `json:"receivers"`
}

// BuildRoutingTable groups edges by publishing element into the adjacency
// list an instance uses to wire its local output streams.
//
// Containers appear in the order they are first seen. Receivers keep the
// edge order and repeated destinations are kept as repeated labels.
func BuildRoutingTable(edges []Route, viewerElementID, debugElementID string) []ContainerRoutes {
	table := make([]ContainerRoutes, 0)
	position := make(map[string]int, len(edges))

	for _, edge := range edges {
		label := receiverLabel(edge.DestinationElementID, viewerElementID, debugElementID)

		idx, seen := position[edge.PublishingElementID]
		if !seen {
			idx = len(table)
			position[edge.PublishingElementID] = idx
			table = append(table, ContainerRoutes{Container: edge.PublishingElementID})
		}
		table[idx].Receivers = append(table[idx].Receivers, label)
	}

	return table
}

// receiverLabel resolves the label for one destination. Viewer wins over debug.
func receiverLabel(destination, viewerElementID, debugElementID string) string {
	switch {
	case viewerElementID != "" && destination == viewerElementID:
		return ReceiverViewer
	case debugElementID != "" && destination == debugElementID:
		return ReceiverDebug
	default:
		return destination
	}
}
