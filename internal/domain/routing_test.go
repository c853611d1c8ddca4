package domain

import (
	"reflect"
	"testing"
)

func edge(pub, dest string) Route {
	return Route{PublishingElementID: pub, DestinationElementID: dest}
}

func TestBuildRoutingTable(t *testing.T) {
	tests := []struct {
		name   string
		edges  []Route
		viewer string
		debug  string
		want   []ContainerRoutes
	}{
		{
			name:   "viewer debug and plain receiver",
			edges:  []Route{edge("C1", "V"), edge("C1", "D"), edge("C1", "X")},
			viewer: "V",
			debug:  "D",
			want:   []ContainerRoutes{{Container: "C1", Receivers: []string{"viewer", "debug", "X"}}},
		},
		{
			name:   "containers keep first seen order",
			edges:  []Route{edge("C2", "A"), edge("C1", "B"), edge("C2", "C")},
			viewer: "V",
			debug:  "D",
			want: []ContainerRoutes{
				{Container: "C2", Receivers: []string{"A", "C"}},
				{Container: "C1", Receivers: []string{"B"}},
			},
		},
		{
			name:   "duplicates are preserved",
			edges:  []Route{edge("C1", "X"), edge("C1", "X"), edge("C1", "V"), edge("C1", "V")},
			viewer: "V",
			debug:  "D",
			want:   []ContainerRoutes{{Container: "C1", Receivers: []string{"X", "X", "viewer", "viewer"}}},
		},
		{
			name:   "viewer wins when viewer and debug are the same element",
			edges:  []Route{edge("C1", "S")},
			viewer: "S",
			debug:  "S",
			want:   []ContainerRoutes{{Container: "C1", Receivers: []string{"viewer"}}},
		},
		{
			name:   "no viewer or debug configured",
			edges:  []Route{edge("C1", "X")},
			viewer: "",
			debug:  "",
			want:   []ContainerRoutes{{Container: "C1", Receivers: []string{"X"}}},
		},
		{
			name:  "no edges",
			edges: nil,
			want:  []ContainerRoutes{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildRoutingTable(tt.edges, tt.viewer, tt.debug)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("BuildRoutingTable() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBuildRoutingTableIsIdempotent(t *testing.T) {
	edges := []Route{edge("C3", "D"), edge("C1", "V"), edge("C3", "Y"), edge("C2", "Z"), edge("C1", "Y")}

	first := BuildRoutingTable(edges, "V", "D")
	for i := 0; i < 5; i++ {
		again := BuildRoutingTable(edges, "V", "D")
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %+v vs %+v", i, first, again)
		}
	}
}

func TestBuildRoutingTableManyContainers(t *testing.T) {
	edges := make([]Route, 0, 20000)
	for i := 0; i < 10000; i++ {
		id := string(rune('a'+i%26)) + string(rune('A'+i/26%26)) + string(rune('0'+i/676))
		edges = append(edges, edge(id, "X"), edge(id, "Y"))
	}

	table := BuildRoutingTable(edges, "", "")
	total := 0
	for _, c := range table {
		total += len(c.Receivers)
	}
	if total != len(edges) {
		t.Errorf("receivers = %d, want %d", total, len(edges))
	}
}
