package model

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned at the mutation boundary. The graph is unchanged when any of them is returned.
var (
	ErrNodeNotFound  = errors.New("node not found")
	ErrEdgeNotFound  = errors.New("edge not found")
	ErrSelfEdge      = errors.New("edge connects a node to itself")
	ErrDuplicateEdge = errors.New("edge already exists")
	ErrInvalidTarget = errors.New("target must be a finite, non-negative rate")
)

// Quality is an output quality tier
type Quality string

const (
	QualityNormal    Quality = "normal"
	QualityUncommon  Quality = "uncommon"
	QualityRare      Quality = "rare"
	QualityEpic      Quality = "epic"
	QualityLegendary Quality = "legendary"
)

// Qualities lists every tier from lowest to highest.
var Qualities = []Quality{QualityNormal, QualityUncommon, QualityRare, QualityEpic, QualityLegendary}

// ParseQuality maps a name to a Quality. The empty string is normal.
func ParseQuality(s string) (Quality, error) {
	if s == "" {
		return QualityNormal, nil
	}
	for _, q := range Qualities {
		if string(q) == strings.ToLower(s) {
			return q, nil
		}
	}
	return "", fmt.Errorf("unknown quality %q", s)
}

// Aggregation selects how demand from several consumers of one supplier is combined
type Aggregation string

const (
	AggregateMax Aggregation = "max"
	AggregateSum Aggregation = "sum"
)

// ParseAggregation maps a name to an Aggregation.
func ParseAggregation(s string) (Aggregation, error) {
	switch Aggregation(strings.ToLower(s)) {
	case AggregateMax:
		return AggregateMax, nil
	case AggregateSum:
		return AggregateSum, nil
	}
	return "", fmt.Errorf("unknown aggregation policy %q (want max or sum)", s)
}

// Combine folds value into acc according to the policy.
func (a Aggregation) Combine(acc, value float64) float64 {
	if a == AggregateSum {
		return acc + value
	}
	if value > acc {
		return value
	}
	return acc
}

// Side selects the input or output port of a node
type Side string

const (
	SideInput  Side = "input"
	SideOutput Side = "output"
)

// Position is the canvas location of a node. The solver never reads it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one recipe instance in the plan.
type Node struct {
	ID              int64    `json:"id"`
	RecipeID        string   `json:"recipe"`
	Position        Position `json:"position"`
	TierID          string   `json:"tier,omitempty"`
	Modules         []string `json:"modules,omitempty"`
	SpeedMultiplier float64  `json:"speedMultiplier,omitempty"` // 0 means 1
	Target          *float64 `json:"target,omitempty"`          // Primary output per minute; nil is unconstrained
}

// TargetValue returns the stored target or 0.
func (n *Node) TargetValue() float64 {
	if n.Target == nil {
		return 0
	}
	return *n.Target
}

// Edge feeds output Item of From, at Quality, into an input of To.
type Edge struct {
	ID      int64   `json:"id"`
	From    int64   `json:"from"`
	To      int64   `json:"to"`
	Item    string  `json:"item"`
	Quality Quality `json:"quality"`
}

func (e *Edge) key() edgeKey {
	return edgeKey{from: e.From, to: e.To, item: e.Item, quality: e.Quality}
}

type edgeKey struct {
	from, to int64
	item     string
	quality  Quality
}
