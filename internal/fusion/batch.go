package fusion

import (
	"context"
	"sort"
	"sync"

	"github.com/airlens/airlens/internal/geo"
)

// batchConcurrency bounds how many city fusions run at once during a
// region-wide pass.
const batchConcurrency = 4

// Hotspot is one ranked city reading within a region.
type Hotspot struct {
	Rank    int      `json:"rank"`
	City    string   `json:"city"`
	Reading *Reading `json:"reading"`
}

// Sensor is a virtual monitoring point anchored at a region city.
// Reading is nil when the sensor is offline.
type Sensor struct {
	ID      string   `json:"id"`
	City    string   `json:"city"`
	Status  string   `json:"status"`
	Reading *Reading `json:"reading,omitempty"`
}

// Sensor statuses.
const (
	SensorOnline  = "online"
	SensorOffline = "offline"
)

// cityResult is the per-city outcome of a region-wide fusion pass.
type cityResult struct {
	city    geo.City
	reading *Reading
	err     error
}

// Hotspots fuses every city in a region and ranks them by PM2.5,
// worst first. Cities whose sources are all unavailable are omitted;
// the result is empty (not an error) when no city yields data.
func (e *Engine) Hotspots(ctx context.Context, regionID string) ([]Hotspot, error) {
	results, err := e.fuseCities(ctx, regionID)
	if err != nil {
		return nil, err
	}

	ok := results[:0:0]
	for _, cr := range results {
		if cr.err == nil {
			ok = append(ok, cr)
		}
	}

	sort.Slice(ok, func(i, j int) bool {
		return ok[i].reading.PM25 > ok[j].reading.PM25
	})

	hotspots := make([]Hotspot, 0, len(ok))
	for i, cr := range ok {
		hotspots = append(hotspots, Hotspot{
			Rank:    i + 1,
			City:    cr.city.Name,
			Reading: cr.reading,
		})
	}
	return hotspots, nil
}

// Sensors returns one virtual sensor per region city, in catalogue
// order. Unavailable cities stay in the list marked offline so clients
// can render the full sensor grid.
func (e *Engine) Sensors(ctx context.Context, regionID string) ([]Sensor, error) {
	results, err := e.fuseCities(ctx, regionID)
	if err != nil {
		return nil, err
	}

	sensors := make([]Sensor, 0, len(results))
	for _, cr := range results {
		sensor := Sensor{
			ID:     regionID + "-" + slug(cr.city.Name),
			City:   cr.city.Name,
			Status: SensorOnline,
		}
		if cr.err != nil {
			sensor.Status = SensorOffline
		} else {
			sensor.Reading = cr.reading
		}
		sensors = append(sensors, sensor)
	}
	return sensors, nil
}

// fuseCities runs a bounded-concurrency fusion pass over all catalogue
// cities of a region. Per-city failures are recorded, not propagated:
// the batch as a whole only fails for an unknown region.
func (e *Engine) fuseCities(ctx context.Context, regionID string) ([]cityResult, error) {
	region, ok := geo.RegionByID(regionID)
	if !ok {
		return nil, geo.ErrUnsupportedRegion
	}

	type indexed struct {
		idx  int
		city geo.City
	}

	cities := make(chan indexed, len(region.Cities))
	for i, c := range region.Cities {
		cities <- indexed{idx: i, city: c}
	}
	close(cities)

	results := make([]cityResult, len(region.Cities))

	workers := batchConcurrency
	if len(region.Cities) < workers {
		workers = len(region.Cities)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range cities {
				reading, err := e.fuseAt(ctx, item.city.Point, regionID, false)
				if err != nil {
					e.logger.Warn().Err(err).
						Str("region", regionID).
						Str("city", item.city.Name).
						Msg("city unavailable in region pass")
				} else {
					reading.PlaceName = item.city.Name
				}
				results[item.idx] = cityResult{city: item.city, reading: reading, err: err}
			}
		}()
	}

	wg.Wait()
	return results, nil
}

// slug lowercases a city name into an ID fragment.
func slug(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ':
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
