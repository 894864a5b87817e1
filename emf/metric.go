package emf

import (
	"fmt"
	"math"
	"sort"

	"github.com/anthonydresser/fluent-bit-khisto/common"
	"github.com/anthonydresser/fluent-bit-khisto/utils"
)

// EMFMetric is one record reduced to what the aggregator needs: its
// metadata, the values of its dimensions and the observed metric values.
type EMFMetric struct {
	AWS        *common.AWSMetadata
	Dimensions map[string]string
	MetricData map[string]common.MetricValue
}

// EmfFromRecord reads a record already in embedded metric format.
func EmfFromRecord(record map[interface{}]interface{}) (*EMFMetric, error) {
	awsData, ok := asMap(lookupKey(record, "_aws"))
	if !ok {
		return nil, fmt.Errorf("aws metadata did not exist or not expected form")
	}

	ts, exists := awsData["Timestamp"]
	if !exists {
		return nil, fmt.Errorf("no timestamp was found in aws data; likely means malformed record")
	}
	timestamp, ok := utils.ConvertToFloat64(ts)
	if !ok {
		return nil, fmt.Errorf("timestamp was not a number; was %T", ts)
	}

	cwArray, ok := awsData["CloudWatchMetrics"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("CloudWatchMetrics did not exist or not expected form")
	}

	emf := &EMFMetric{
		AWS: &common.AWSMetadata{
			Timestamp:         int64(timestamp),
			CloudWatchMetrics: make([]common.ProjectionDefinition, 0, len(cwArray)),
		},
		Dimensions: make(map[string]string),
		MetricData: make(map[string]common.MetricValue),
	}
	dimensionSet := make(map[string]struct{})
	metricSet := make(map[string]struct{})

	for i, metricDef := range cwArray {
		md, ok := asMap(metricDef)
		if !ok {
			return nil, fmt.Errorf("CloudWatchMetrics[%d] is not an object", i)
		}
		def := common.ProjectionDefinition{Namespace: utils.ToString(md["Namespace"])}

		dimArray, _ := md["Dimensions"].([]interface{})
		def.Dimensions = make([][]string, 0, len(dimArray))
		for _, dim := range dimArray {
			dimSet, ok := dim.([]interface{})
			if !ok {
				return nil, fmt.Errorf("CloudWatchMetrics[%d] has a malformed dimension set", i)
			}
			dimStrings := make([]string, len(dimSet))
			for k, d := range dimSet {
				dimStrings[k] = utils.ToString(d)
				dimensionSet[dimStrings[k]] = struct{}{}
			}
			// sorted so dimension sets compare equal regardless of order
			sort.Strings(dimStrings)
			def.Dimensions = append(def.Dimensions, dimStrings)
		}

		metricsArray, ok := md["Metrics"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("CloudWatchMetrics[%d] has no metrics", i)
		}
		for _, metric := range metricsArray {
			m, ok := asMap(metric)
			if !ok {
				return nil, fmt.Errorf("CloudWatchMetrics[%d] has a malformed metric", i)
			}
			metricDef := common.MetricDefinition{Name: utils.ToString(m["Name"])}
			if unit, ok := m["Unit"]; ok {
				metricDef.Unit = utils.ToString(unit)
			}
			def.Metrics = append(def.Metrics, metricDef)
			metricSet[metricDef.Name] = struct{}{}
		}

		emf.AWS.CloudWatchMetrics = append(emf.AWS.CloudWatchMetrics, def)
	}

	for key, value := range record {
		strKey := utils.ToString(key)
		if _, exists := metricSet[strKey]; exists {
			mv, err := parseMetricValue(value)
			if err != nil {
				return nil, fmt.Errorf("metric %s: %w", strKey, err)
			}
			emf.MetricData[strKey] = mv
		} else if _, exists := dimensionSet[strKey]; exists {
			emf.Dimensions[strKey] = utils.ToString(value)
		}
	}
	for name := range metricSet {
		if _, exists := emf.MetricData[name]; !exists {
			return nil, fmt.Errorf("declared metric %s has no value", name)
		}
	}
	for name := range dimensionSet {
		if _, exists := emf.Dimensions[name]; !exists {
			return nil, fmt.Errorf("declared dimension %s has no value", name)
		}
	}

	return emf, nil
}

// PlainFromRecord turns a record without EMF metadata into a metric under
// namespace. With a valueKey only that field is read, and string values are
// parsed. Otherwise every numeric field becomes a metric of its own name.
func PlainFromRecord(record map[interface{}]interface{}, valueKey, namespace string, timestamp int64) (*EMFMetric, error) {
	emf := &EMFMetric{
		Dimensions: map[string]string{},
		MetricData: make(map[string]common.MetricValue),
	}

	if valueKey != "" {
		raw := lookupKey(record, valueKey)
		if raw == nil {
			return nil, fmt.Errorf("record has no %s field", valueKey)
		}
		v, ok := utils.ConvertToFloat64(raw)
		if !ok {
			return nil, fmt.Errorf("field %s is not a number: %v", valueKey, utils.ToString(raw))
		}
		emf.MetricData[valueKey] = common.NewSingleValue(v)
	} else {
		for key, value := range record {
			if !isNumber(value) {
				continue
			}
			v, _ := utils.ConvertToFloat64(value)
			emf.MetricData[utils.ToString(key)] = common.NewSingleValue(v)
		}
	}
	if len(emf.MetricData) == 0 {
		return nil, fmt.Errorf("record has no numeric field")
	}

	names := make([]string, 0, len(emf.MetricData))
	for name := range emf.MetricData {
		names = append(names, name)
	}
	sort.Strings(names)
	def := common.ProjectionDefinition{Namespace: namespace, Dimensions: [][]string{}}
	for _, name := range names {
		def.Metrics = append(def.Metrics, common.MetricDefinition{Name: name})
	}
	emf.AWS = &common.AWSMetadata{Timestamp: timestamp, CloudWatchMetrics: []common.ProjectionDefinition{def}}
	return emf, nil
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

func asMap(v interface{}) (map[interface{}]interface{}, bool) {
	switch m := v.(type) {
	case map[interface{}]interface{}:
		return m, true
	case map[string]interface{}:
		converted := make(map[interface{}]interface{}, len(m))
		for k, val := range m {
			converted[k] = val
		}
		return converted, true
	}
	return nil, false
}

// lookupKey finds a field whether the decoder produced string or byte keys.
func lookupKey(record map[interface{}]interface{}, key string) interface{} {
	if v, ok := record[key]; ok {
		return v
	}
	for k, v := range record {
		if utils.ToString(k) == key {
			return v
		}
	}
	return nil
}

func parseMetricValue(value interface{}) (common.MetricValue, error) {
	mv := common.MetricValue{}

	if v, ok := asMap(value); ok {
		if values, exists := v["Values"]; exists {
			actual, ok := values.([]interface{})
			if !ok {
				return mv, fmt.Errorf("values are not an array")
			}
			mv.Values = make([]float64, len(actual))
			for i, val := range actual {
				if mv.Values[i], ok = utils.ConvertToFloat64(val); !ok {
					return mv, fmt.Errorf("value %d is not a number", i)
				}
			}
		}
		if counts, exists := v["Counts"]; exists {
			actual, ok := counts.([]interface{})
			if !ok {
				return mv, fmt.Errorf("counts are not an array")
			}
			mv.Counts = make([]uint, len(actual))
			for i, val := range actual {
				if mv.Counts[i], ok = utils.ConvertToUint(val); !ok {
					return mv, fmt.Errorf("count %d is not a count", i)
				}
			}
		}
		if len(mv.Counts) > 0 && len(mv.Counts) != len(mv.Values) {
			return mv, fmt.Errorf("%d values for %d counts", len(mv.Values), len(mv.Counts))
		}
		mv.Min = optionalFloat(v["Min"])
		mv.Max = optionalFloat(v["Max"])
		mv.Sum = optionalFloat(v["Sum"])
		if count, ok := utils.ConvertToUint(v["Count"]); ok {
			mv.Count = &count
		}
		if !mv.IsDistribution() && !mv.IsStatisticSet() {
			return mv, fmt.Errorf("neither values nor a statistic set")
		}
		return mv, nil
	}

	if values, ok := value.([]interface{}); ok {
		mv.Values = make([]float64, len(values))
		for i, val := range values {
			if mv.Values[i], ok = utils.ConvertToFloat64(val); !ok {
				return mv, fmt.Errorf("value %d is not a number", i)
			}
		}
		return mv, nil
	}

	v, ok := utils.ConvertToFloat64(value)
	if !ok {
		return mv, fmt.Errorf("not a number: %v", utils.ToString(value))
	}
	return common.NewSingleValue(v), nil
}

func optionalFloat(v interface{}) *float64 {
	if v == nil {
		return nil
	}
	f, ok := utils.ConvertToFloat64(v)
	if !ok || math.IsNaN(f) {
		return nil
	}
	return &f
}
