package geo

import (
	"math"
	"sort"

	"fleet-safety/internal/models"
)

const (
	earthRadiusKm = 6371

	// DefaultRadiusKm is the cut-off applied when the caller passes no radius.
	DefaultRadiusKm = 10.0
)

type candidate struct {
	name string
	kind string
	dLat float64
	dLng float64
}

// Offsets are fixed so a coordinate always resolves to the same facilities.
var candidates = []candidate{
	{"Central Police Station", models.FacilityPolice, 0.05, 0.05},
	{"North Police Station", models.FacilityPolice, 0.08, -0.03},
	{"South Police Station", models.FacilityPolice, -0.06, 0.04},
	{"City General Hospital", models.FacilityHospital, -0.04, 0.06},
	{"Emergency Medical Center", models.FacilityHospital, 0.07, 0.02},
	{"Regional Hospital", models.FacilityHospital, -0.05, -0.05},
}

// Resolver turns a coordinate into the nearby police and hospital facilities.
type Resolver struct {
	PolicePhone   string
	HospitalPhone string
	RadiusKm      float64
}

func (r Resolver) Nearby(lat, lng float64) []models.NearbyFacility {
	return NearbyFacilities(lat, lng, r.PolicePhone, r.HospitalPhone, r.RadiusKm)
}

// NearbyFacilities returns facilities within radiusKm of (lat, lng), closest first.
// Each facility carries the configured contact phone for its type.
func NearbyFacilities(lat, lng float64, policePhone, hospitalPhone string, radiusKm float64) []models.NearbyFacility {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}

	facilities := make([]models.NearbyFacility, 0, len(candidates))
	for _, c := range candidates {
		loc := models.Location{Lat: lat + c.dLat, Lng: lng + c.dLng}
		distance := Haversine(lat, lng, loc.Lat, loc.Lng)
		if distance > radiusKm {
			continue
		}

		phone := policePhone
		if c.kind == models.FacilityHospital {
			phone = hospitalPhone
		}

		facilities = append(facilities, models.NearbyFacility{
			Name:       c.name,
			Type:       c.kind,
			Location:   loc,
			DistanceKm: math.Round(distance*10) / 10,
			Phone:      phone,
		})
	}

	sort.SliceStable(facilities, func(i, j int) bool {
		return facilities[i].DistanceKm < facilities[j].DistanceKm
	})
	return facilities
}

// Haversine returns the great-circle distance in kilometres.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lng2 - lng1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// ValidCoordinate reports whether lat/lng are finite and within range.
func ValidCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
