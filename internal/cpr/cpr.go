// Package cpr implements the Compact Position Reporting encode/decode math
// (spec §4.6): global decode from an even/odd frame pair, local decode
// against a reference position, and the zone-count (NL) table both rely
// on.
//
// Grounded on the teacher's mode_s.decodeCPR/cprNLFunction/cprNFunction,
// generalized to operate on raw frame values directly (no Aircraft
// coupling) so the tracker can call it with either an aircraft's own prior
// fix or a configured receiver-home reference for local decode.
package cpr

import "math"

// Raw CPR fields are 17-bit values in [0, 131072).
const (
	rawScale = 131072.0

	airDlat0 = 360.0 / 60
	airDlat1 = 360.0 / 59
)

// NL implements the CPR "zone count" function from 1090-WP-9-14, using the
// precomputed latitude-band table (kept as compile-time constants per
// spec §4.9, not computed at runtime).
func NL(lat float64) int {
	if lat < 0 {
		lat = -lat
	}
	switch {
	case lat < 10.47047130:
		return 59
	case lat < 14.82817437:
		return 58
	case lat < 18.18626357:
		return 57
	case lat < 21.02939493:
		return 56
	case lat < 23.54504487:
		return 55
	case lat < 25.82924707:
		return 54
	case lat < 27.93898710:
		return 53
	case lat < 29.91135686:
		return 52
	case lat < 31.77209708:
		return 51
	case lat < 33.53993436:
		return 50
	case lat < 35.22899598:
		return 49
	case lat < 36.85025108:
		return 48
	case lat < 38.41241892:
		return 47
	case lat < 39.92256684:
		return 46
	case lat < 41.38651832:
		return 45
	case lat < 42.80914012:
		return 44
	case lat < 44.19454951:
		return 43
	case lat < 45.54626723:
		return 42
	case lat < 46.86733252:
		return 41
	case lat < 48.16039128:
		return 40
	case lat < 49.42776439:
		return 39
	case lat < 50.67150166:
		return 38
	case lat < 51.89342469:
		return 37
	case lat < 53.09516153:
		return 36
	case lat < 54.27817472:
		return 35
	case lat < 55.44378444:
		return 34
	case lat < 56.59318756:
		return 33
	case lat < 57.72747354:
		return 32
	case lat < 58.84763776:
		return 31
	case lat < 59.95459277:
		return 30
	case lat < 61.04917774:
		return 29
	case lat < 62.13216659:
		return 28
	case lat < 63.20427479:
		return 27
	case lat < 64.26616523:
		return 26
	case lat < 65.31845310:
		return 25
	case lat < 66.36171008:
		return 24
	case lat < 67.39646774:
		return 23
	case lat < 68.42322022:
		return 22
	case lat < 69.44242631:
		return 21
	case lat < 70.45451075:
		return 20
	case lat < 71.45986473:
		return 19
	case lat < 72.45884545:
		return 18
	case lat < 73.45177442:
		return 17
	case lat < 74.43893416:
		return 16
	case lat < 75.42056257:
		return 15
	case lat < 76.39684391:
		return 14
	case lat < 77.36789461:
		return 13
	case lat < 78.33374083:
		return 12
	case lat < 79.29428225:
		return 11
	case lat < 80.24923213:
		return 10
	case lat < 81.19801349:
		return 9
	case lat < 82.13956981:
		return 8
	case lat < 83.07199445:
		return 7
	case lat < 83.99173563:
		return 6
	case lat < 84.89166191:
		return 5
	case lat < 85.75541621:
		return 4
	case lat < 86.53536998:
		return 3
	case lat < 87.00000000:
		return 2
	default:
		return 1
	}
}

func modFunc(a, b int) int {
	res := a % b
	if res < 0 {
		res += b
	}
	return res
}

func nFunc(lat float64, odd bool) int {
	nl := NL(lat)
	if odd {
		nl--
	}
	if nl < 1 {
		nl = 1
	}
	return nl
}

func dlonFunc(lat float64, odd bool) float64 {
	return 360.0 / float64(nFunc(lat, odd))
}

// Frame is one raw CPR-encoded position report.
type Frame struct {
	Lat, Lon int // raw 17-bit encoded values
}

// GlobalDecode recovers a lat/lon from a consecutive even/odd frame pair.
// useOdd selects which frame's latitude zone is used to derive longitude
// (the caller passes whichever of the pair arrived most recently, per spec
// §4.6). ok is false when the even/odd latitude zone numbers disagree,
// meaning the two frames straddled a zone boundary and cannot be combined.
func GlobalDecode(even, odd Frame, useOdd bool) (lat, lon float64, ok bool) {
	latE := float64(even.Lat)
	latO := float64(odd.Lat)
	lonE := float64(even.Lon)
	lonO := float64(odd.Lon)

	j := int(math.Floor(((59*latE - 60*latO) / rawScale) + 0.5))
	rlat0 := airDlat0 * (float64(modFunc(j, 60)) + latE/rawScale)
	rlat1 := airDlat1 * (float64(modFunc(j, 59)) + latO/rawScale)

	if rlat0 >= 270 {
		rlat0 -= 360
	}
	if rlat1 >= 270 {
		rlat1 -= 360
	}

	if NL(rlat0) != NL(rlat1) {
		return 0, 0, false
	}

	if !useOdd {
		ni := nFunc(rlat0, false)
		m := math.Floor((((lonE * float64(NL(rlat0)-1)) - (lonO * float64(NL(rlat0)))) / rawScale) + 0.5)
		lon = dlonFunc(rlat0, false) * (float64(modFunc(int(m), ni)) + lonE/rawScale)
		lat = rlat0
	} else {
		ni := nFunc(rlat1, true)
		m := math.Floor((((lonE * float64(NL(rlat1)-1)) - (lonO * float64(NL(rlat1)))) / rawScale) + 0.5)
		lon = dlonFunc(rlat1, true) * (float64(modFunc(int(m), ni)) + lonO/rawScale)
		lat = rlat1
	}

	if lon > 180 {
		lon -= 360
	}
	return lat, lon, true
}

func floorMod(a, b float64) float64 {
	m := math.Mod(a, b)
	if m < 0 {
		m += b
	}
	return m
}

// LocalDecode recovers the single nearest CPR zone to a known reference
// position (an aircraft's own last fix, or the receiver's configured home
// location). Unlike global decode it needs only one frame, at the cost of
// being wrong if the true position is more than half a zone width from the
// reference (callers are expected to reject decodes implausibly far from
// the reference per spec §4.6).
func LocalDecode(f Frame, odd bool, refLat, refLon float64) (lat, lon float64) {
	dlat := airDlat0
	if odd {
		dlat = airDlat1
	}

	j := math.Floor(refLat/dlat) + math.Floor(0.5+floorMod(refLat, dlat)/dlat-float64(f.Lat)/rawScale)
	lat = dlat * (j + float64(f.Lat)/rawScale)

	dlon := dlonFunc(lat, odd)
	m := math.Floor(refLon/dlon) + math.Floor(0.5+floorMod(refLon, dlon)/dlon-float64(f.Lon)/rawScale)
	lon = dlon * (m + float64(f.Lon)/rawScale)

	return lat, lon
}

// Encode produces the raw 17-bit CPR frame for a lat/lon, the inverse of
// GlobalDecode/LocalDecode. It exists mainly to generate test vectors and
// replay traces (no pack repo implements CPR encoding; this follows
// directly from the decode math in spec §4.6 run in reverse) and is not
// part of the receive path itself.
func Encode(lat, lon float64, odd bool) Frame {
	dlat := airDlat0
	if odd {
		dlat = airDlat1
	}

	yz := math.Floor(rawScale*(floorMod(lat, dlat)/dlat) + 0.5)
	rlat := dlat * (yz/rawScale + math.Floor(lat/dlat))

	dlon := dlonFunc(rlat, odd)
	xz := math.Floor(rawScale*(floorMod(lon, dlon)/dlon) + 0.5)

	return Frame{
		Lat: int(yz) % int(rawScale),
		Lon: int(xz) % int(rawScale),
	}
}

const earthRadiusNM = 3440.065

// DistanceNM returns the great-circle distance in nautical miles between
// two lat/lon points, used by the tracker to reject CPR decodes that land
// implausibly far from a receiver or prior fix (spec §4.6).
func DistanceNM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	phi1, phi2 := lat1*rad, lat2*rad
	dphi := (lat2 - lat1) * rad
	dlambda := (lon2 - lon1) * rad

	a := math.Sin(dphi/2)*math.Sin(dphi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dlambda/2)*math.Sin(dlambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusNM * c
}
