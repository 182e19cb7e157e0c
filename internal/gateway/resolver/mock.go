package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"pelorus/internal/domain"
)

// The weather, satellite, AIS and logistics domains are not integrated yet.
// Their resolvers return synthetic payloads that are deterministic for a
// given argument set and match the schema exactly, so wiring a real
// upstream later is a substitution, not a schema change.

func (r *Registry) registerMocks() {
	r.query("weather", r.weatherHandler())
	r.query("satellite", r.satelliteHandler())
	r.query("ais", r.aisHandler())
	r.query("logistics", r.logisticsHandler())
}

// seed derives a stable pseudo-random value in [0,1) from its inputs.
func seed(parts ...string) float64 {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return float64(binary.BigEndian.Uint32(sum[:4])) / float64(1<<32)
}

func (r *Registry) weatherHandler() Handler {
	return func(_ context.Context, args map[string]any, _ domain.Identity) (any, error) {
		lat, _ := argString(args, "lat")
		lon, _ := argString(args, "lon")
		if lat == "" {
			lat = "0"
		}
		if lon == "" {
			lon = "0"
		}
		s := seed("weather", lat, lon)
		conditions := []string{"clear", "overcast", "rain", "squalls"}
		return map[string]any{
			"lat":            lat,
			"lon":            lon,
			"temperature_c":  round1(8 + s*22),
			"wind_knots":     round1(4 + s*30),
			"wave_height_m":  round1(0.3 + s*4.5),
			"condition":      conditions[int(s*float64(len(conditions)))%len(conditions)],
			"visibility_nm":  round1(2 + s*10),
			"source":         "synthetic",
		}, nil
	}
}

func (r *Registry) satelliteHandler() Handler {
	return func(_ context.Context, args map[string]any, _ domain.Identity) (any, error) {
		vesselID, _ := argString(args, "vessel_id")
		if vesselID == "" {
			vesselID = "unknown"
		}
		s := seed("satellite", vesselID)
		base := r.now().UTC().Truncate(time.Hour)
		positions := make([]map[string]any, 0, 3)
		for i := 0; i < 3; i++ {
			offset := seed("satellite", vesselID, fmt.Sprint(i))
			positions = append(positions, map[string]any{
				"lat":         round4(-60 + offset*120),
				"lon":         round4(-180 + offset*360),
				"recorded_at": base.Add(-time.Duration(i) * time.Hour).Format(time.RFC3339),
			})
		}
		return map[string]any{
			"vessel_id": vesselID,
			"positions": positions,
			"heading":   round1(s * 360),
			"source":    "synthetic",
		}, nil
	}
}

func (r *Registry) aisHandler() Handler {
	return func(_ context.Context, args map[string]any, _ domain.Identity) (any, error) {
		mmsi, _ := argString(args, "mmsi")
		if mmsi == "" {
			mmsi = "000000000"
		}
		s := seed("ais", mmsi)
		statuses := []string{"under way using engine", "at anchor", "moored", "restricted manoeuvrability"}
		return map[string]any{
			"mmsi":        mmsi,
			"lat":         round4(-60 + s*120),
			"lon":         round4(-180 + seed("ais", mmsi, "lon")*360),
			"speed_knots": round1(s * 22),
			"course":      round1(seed("ais", mmsi, "course") * 360),
			"nav_status":  statuses[int(s*float64(len(statuses)))%len(statuses)],
			"source":      "synthetic",
		}, nil
	}
}

func (r *Registry) logisticsHandler() Handler {
	return func(_ context.Context, args map[string]any, _ domain.Identity) (any, error) {
		port, _ := argString(args, "port")
		if port == "" {
			port = "SGSIN"
		}
		s := seed("logistics", port)
		return map[string]any{
			"port":              port,
			"berth_wait_hours":  round1(s * 36),
			"available_berths":  int(seed("logistics", port, "berths")*12) + 1,
			"congestion_level":  []string{"low", "moderate", "high"}[int(s*3)%3],
			"pilotage_required": s > 0.3,
			"source":            "synthetic",
		}, nil
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
