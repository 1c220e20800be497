// Package store persists plans as JSON documents.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Invalid27/Factorio-Planner-sub000/pkg/model"
)

// CurrentVersion is written into every document.
const CurrentVersion = 1

// ErrDocument marks a document that could not be decoded or restored.
// The in-memory plan is never touched when it is returned.
var ErrDocument = errors.New("invalid plan document")

// Document is the serialized form of a plan.
type Document struct {
	Version     int               `json:"version"`
	ID          uuid.UUID         `json:"id"`
	Aggregation model.Aggregation `json:"aggregation"`
	NextNodeID  int64             `json:"nextNodeId"`
	NextEdgeID  int64             `json:"nextEdgeId"`
	Nodes       []model.Node      `json:"nodes"`
	Edges       []model.Edge      `json:"edges"`
	Pins        map[int64]float64 `json:"pins,omitempty"`
}

// FromGraph captures g. The document shares nothing with the graph.
func FromGraph(id uuid.UUID, g *model.Graph, agg model.Aggregation) *Document {
	nextNode, nextEdge := g.Counters()
	doc := &Document{
		Version:     CurrentVersion,
		ID:          id,
		Aggregation: agg,
		NextNodeID:  nextNode,
		NextEdgeID:  nextEdge,
		Nodes:       make([]model.Node, 0, g.NodeCount()),
		Edges:       []model.Edge{},
	}
	if pins := g.Pins(); len(pins) > 0 {
		doc.Pins = pins
	}

	for _, n := range g.Nodes() {
		c := *n
		c.Modules = append([]string(nil), n.Modules...)
		if n.Target != nil {
			t := *n.Target
			c.Target = &t
		}
		doc.Nodes = append(doc.Nodes, c)
	}
	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, *e)
	}
	return doc
}

// Graph rebuilds the plan the document describes.
func (d *Document) Graph() (*model.Graph, model.Aggregation, error) {
	agg := model.AggregateMax
	if d.Aggregation != "" {
		parsed, err := model.ParseAggregation(string(d.Aggregation))
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrDocument, err)
		}
		agg = parsed
	}

	g, err := model.Restore(d.Nodes, d.Edges, d.Pins, d.NextNodeID, d.NextEdgeID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDocument, err)
	}
	return g, agg, nil
}

// Encode renders the document as indented JSON.
func Encode(d *Document) ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses and checks a document without building a graph.
func Decode(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocument, err)
	}
	if d.Version == 0 || d.Version > CurrentVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrDocument, d.Version)
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return &d, nil
}
