package pipeline

import (
	"math"
	"sort"

	"github.com/hannes/docshield/pii"
)

// combine concatenates all successful layers' detections, drops duplicates
// by (type, text) keeping the highest-confidence instance, sorts by
// confidence descending and caps the list length. Running it twice on an
// already-combined list yields the same list.
func combine(results []pii.LayerResult, maxDetections int) []pii.Detection {
	best := make(map[string]pii.Detection)
	var order []string

	for _, lr := range results {
		if !lr.Success {
			continue
		}
		for _, d := range lr.Detections {
			key := d.Key()
			prev, ok := best[key]
			if !ok {
				best[key] = d
				order = append(order, key)
			} else if d.Confidence > prev.Confidence {
				best[key] = d
			}
		}
	}

	out := make([]pii.Detection, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	if maxDetections > 0 && len(out) > maxDetections {
		out = out[:maxDetections]
	}
	return out
}

// ensembleMerge keeps only detections corroborated by at least two distinct
// layers. The surviving detection is the combined (highest-confidence)
// instance with its confidence boosted to min(mean * 1.1, 1.0) over the
// contributing entries, marked verified. With ensembling disabled the
// combined list is final verbatim, so this function is simply not called.
func ensembleMerge(combined []pii.Detection, results []pii.LayerResult) []pii.Detection {
	type agreement struct {
		layers map[string]struct{}
		sum    float64
		count  int
	}
	groups := make(map[string]*agreement)

	for _, lr := range results {
		if !lr.Success {
			continue
		}
		for _, d := range lr.Detections {
			key := d.Key()
			g, ok := groups[key]
			if !ok {
				g = &agreement{layers: make(map[string]struct{})}
				groups[key] = g
			}
			if _, dup := g.layers[lr.Layer]; dup {
				continue
			}
			g.layers[lr.Layer] = struct{}{}
			g.sum += d.Confidence
			g.count++
		}
	}

	var out []pii.Detection
	for _, d := range combined {
		g, ok := groups[d.Key()]
		if !ok || len(g.layers) < 2 {
			continue
		}
		mean := g.sum / float64(g.count)
		d.Confidence = math.Min(mean*1.1, 1.0)
		d.Verified = true
		out = append(out, d)
	}
	return out
}
