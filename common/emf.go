package common

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/anthonydresser/fluent-bit-khisto/utils"
)

// EMFEvent is one CloudWatch embedded metric format log line: the _aws
// metadata plus dimension values and metric values at the top level.
type EMFEvent struct {
	AWS         *AWSMetadata
	OtherFields map[string]interface{}
}

func (e EMFEvent) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.OtherFields)+1)
	for k, v := range e.OtherFields {
		out[k] = v
	}
	out["_aws"] = e.AWS
	return json.Marshal(out)
}

func (e *EMFEvent) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	aws, ok := raw["_aws"]
	if !ok {
		return fmt.Errorf("missing _aws metadata")
	}
	e.AWS = &AWSMetadata{}
	if err := json.Unmarshal(aws, e.AWS); err != nil {
		return fmt.Errorf("invalid _aws metadata: %w", err)
	}
	delete(raw, "_aws")
	e.OtherFields = make(map[string]interface{}, len(raw))
	for k, v := range raw {
		var value interface{}
		if err := json.Unmarshal(v, &value); err != nil {
			return fmt.Errorf("invalid field %s: %w", k, err)
		}
		e.OtherFields[k] = value
	}
	return nil
}

type AWSMetadata struct {
	Timestamp         int64                  `json:"Timestamp,omitempty"`
	CloudWatchMetrics []ProjectionDefinition `json:"CloudWatchMetrics"`
}

type MetricDefinition struct {
	Name string `json:"Name"`
	Unit string `json:"Unit,omitempty"`
}

type ProjectionDefinition struct {
	Namespace  string             `json:"Namespace"`
	Dimensions [][]string         `json:"Dimensions"`
	Metrics    []MetricDefinition `json:"Metrics"`
}

func mergeMetrics(old []MetricDefinition, new []MetricDefinition) []MetricDefinition {
	for _, attempt := range new {
		exists := utils.Find(old, func(v MetricDefinition) bool {
			return v.Name == attempt.Name && v.Unit == attempt.Unit
		}) != -1
		if !exists {
			old = append(old, attempt)
		}
	}
	return old
}

// we can only merge if the namespaces match and the dimension sets match
// even if the namespaces match, if the dimensions aren't the same we risk
// emitting metrics under dimensions they weren't intended to be emitted under
func (def *ProjectionDefinition) attemptMerge(new *ProjectionDefinition) bool {
	if def.Namespace != new.Namespace || len(def.Dimensions) != len(new.Dimensions) {
		return false
	}
	if utils.Every(def.Dimensions, func(val []string) bool {
		return utils.Find(new.Dimensions, func(test []string) bool {
			return dimensionKey(val) == dimensionKey(test)
		}) != -1
	}) {
		def.Metrics = mergeMetrics(def.Metrics, new.Metrics)
		return true
	}
	return false
}

func dimensionKey(dimensions []string) string {
	sorted := append([]string(nil), dimensions...)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}

// Merge folds the projections of new into m, keeping the latest timestamp.
func (m *AWSMetadata) Merge(new *AWSMetadata) {
	if new.Timestamp > m.Timestamp {
		m.Timestamp = new.Timestamp
	}
	for _, attempt := range new.CloudWatchMetrics {
		merged := false
		for i := range m.CloudWatchMetrics {
			if merged = m.CloudWatchMetrics[i].attemptMerge(&attempt); merged {
				break
			}
		}
		if !merged {
			m.CloudWatchMetrics = append(m.CloudWatchMetrics, attempt.clone())
		}
	}
}

func (def ProjectionDefinition) clone() ProjectionDefinition {
	c := ProjectionDefinition{
		Namespace:  def.Namespace,
		Dimensions: make([][]string, len(def.Dimensions)),
		Metrics:    append([]MetricDefinition(nil), def.Metrics...),
	}
	for i, d := range def.Dimensions {
		c.Dimensions[i] = append([]string(nil), d...)
	}
	return c
}

// MetricNames lists the metric names of every projection, without duplicates.
func (m *AWSMetadata) MetricNames() []string {
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, def := range m.CloudWatchMetrics {
		for _, metric := range def.Metrics {
			if _, ok := seen[metric.Name]; !ok {
				seen[metric.Name] = struct{}{}
				names = append(names, metric.Name)
			}
		}
	}
	return names
}

// Retain returns a copy of m declaring only the metrics for which keep is
// true. Projections left without metrics are dropped.
func (m *AWSMetadata) Retain(keep func(name string) bool) *AWSMetadata {
	out := &AWSMetadata{Timestamp: m.Timestamp, CloudWatchMetrics: make([]ProjectionDefinition, 0, len(m.CloudWatchMetrics))}
	for _, def := range m.CloudWatchMetrics {
		c := def.clone()
		c.Metrics = c.Metrics[:0]
		for _, metric := range def.Metrics {
			if keep(metric.Name) {
				c.Metrics = append(c.Metrics, metric)
			}
		}
		if len(c.Metrics) > 0 {
			out.CloudWatchMetrics = append(out.CloudWatchMetrics, c)
		}
	}
	return out
}
