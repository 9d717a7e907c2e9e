package stations

import (
	"sort"
	"strings"

	"github.com/amdjml/WMATAPI/internal/static/gtfs"
)

// routeCodes maps WMATA line names to the short codes used in the
// real-time feed, checked in order
var routeCodes = []struct{ line, code string }{
	{"red", "RD"},
	{"orange", "OR"},
	{"silver", "SV"},
	{"blue", "BL"},
	{"yellow", "YL"},
	{"green", "GR"},
}

// RouteCode simplifies a route name to its line code. Names without a
// known line are returned unchanged.
func RouteCode(name string) string {
	lower := strings.ToLower(name)
	for _, rc := range routeCodes {
		if strings.Contains(lower, rc.line) {
			return rc.code
		}
	}
	return name
}

// Build derives the station table from a GTFS static feed. Only top-level
// stops become stations; routes are collected from every trip that calls
// at the station or one of its platforms. Stations sharing a name are
// merged into the one with the shortest id.
func Build(data *gtfs.Data) *Table {
	parentOf := make(map[string]string, len(data.Stops))
	stations := make(map[string]*Station)
	for _, stop := range data.Stops {
		if stop.ParentStation != "" {
			parentOf[stop.StopID] = stop.ParentStation
			continue
		}
		if stop.LocationType > 1 {
			continue
		}
		lat, lon := stop.StopLat, stop.StopLon
		stations[stop.StopID] = &Station{
			ID:        stop.StopID,
			Name:      stop.StopName,
			Latitude:  &lat,
			Longitude: &lon,
		}
	}

	routeByID := make(map[string]string, len(data.Routes))
	for _, r := range data.Routes {
		name := r.RouteShortName
		if name == "" {
			name = r.RouteLongName
		}
		if name == "" {
			name = r.RouteID
		}
		routeByID[r.RouteID] = RouteCode(name)
	}

	routeByTrip := make(map[string]string, len(data.Trips))
	for _, trip := range data.Trips {
		code, ok := routeByID[trip.RouteID]
		if !ok {
			code = RouteCode(trip.RouteID)
		}
		routeByTrip[trip.TripID] = code
	}

	routesAt := make(map[string]map[string]struct{})
	for _, st := range data.StopTimes {
		code, ok := routeByTrip[st.TripID]
		if !ok {
			continue
		}
		id := topLevel(st.StopID, parentOf)
		if _, ok := stations[id]; !ok {
			continue
		}
		if routesAt[id] == nil {
			routesAt[id] = make(map[string]struct{})
		}
		routesAt[id][code] = struct{}{}
	}

	byName := make(map[string][]*Station)
	for id, s := range stations {
		s.Routes = sortedSet(routesAt[id])
		key := strings.ToLower(strings.TrimSpace(s.Name))
		byName[key] = append(byName[key], s)
	}

	list := make([]Station, 0, len(byName))
	for _, group := range byName {
		sort.Slice(group, func(i, j int) bool {
			if len(group[i].ID) != len(group[j].ID) {
				return len(group[i].ID) < len(group[j].ID)
			}
			return group[i].ID < group[j].ID
		})

		keep := *group[0]
		if len(group) > 1 {
			merged := make(map[string]struct{})
			for _, s := range group {
				for _, r := range s.Routes {
					merged[r] = struct{}{}
				}
			}
			keep.Routes = sortedSet(merged)
		}
		list = append(list, keep)
	}

	return NewTable(list)
}

// topLevel follows parent_station links up to the station itself
func topLevel(stopID string, parentOf map[string]string) string {
	for i := 0; i < 4; i++ {
		parent, ok := parentOf[stopID]
		if !ok {
			break
		}
		stopID = parent
	}
	return stopID
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
