package results

const (
	// EndpointTag tags egress metrics with their destination.
	EndpointTag = "endpoint"
	FilesOut    = "files_out"
	BytesOut    = "bytes_out"
)

// Tag is one key/value label of a Metric.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Metric is a named value reported alongside a result.
type Metric struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
	Tags  []Tag  `json:"tags"`
}

// NewMetric builds a Metric from alternating tag key/value pairs.
func NewMetric(name string, value int64, tagPairs ...string) Metric {
	tags := make([]Tag, 0, len(tagPairs)/2)
	for i := 0; i < len(tagPairs)-1; i += 2 {
		tags = append(tags, Tag{Key: tagPairs[i], Value: tagPairs[i+1]})
	}
	return Metric{Name: name, Value: value, Tags: tags}
}

// Tag returns the value of the first tag named key.
func (m Metric) Tag(key string) (string, bool) {
	for _, t := range m.Tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

func (m Metric) wire() Metric {
	tags := m.Tags
	if tags == nil {
		tags = []Tag{}
	}
	return Metric{Name: m.Name, Value: m.Value, Tags: append([]Tag{}, tags...)}
}

func cloneMetrics(ms []Metric) []Metric {
	out := make([]Metric, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.wire())
	}
	return out
}
