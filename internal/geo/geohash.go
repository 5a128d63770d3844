package geo

import "strings"

// GeohashPrecision is the geohash length used for coarse display. Six
// characters resolve to roughly +/-600 m, enough to place a marker on a
// neighborhood map without pinpointing an address.
const GeohashPrecision = 6

// geohashBase32 is the geohash alphabet (base32 minus a, i, l, o).
const geohashBase32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// Geohash encodes the point with the standard interleaved bisection
// algorithm. precision < 1 falls back to GeohashPrecision.
func Geohash(p Point, precision int) string {
	if precision < 1 {
		precision = GeohashPrecision
	}

	latRange := [2]float64{-90, 90}
	lonRange := [2]float64{-180, 180}

	var out strings.Builder
	out.Grow(precision)

	bits := 0
	var ch uint
	even := true
	for out.Len() < precision {
		if even {
			mid := (lonRange[0] + lonRange[1]) / 2
			if p.Lon > mid {
				ch |= 1 << (4 - bits)
				lonRange[0] = mid
			} else {
				lonRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if p.Lat > mid {
				ch |= 1 << (4 - bits)
				latRange[0] = mid
			} else {
				latRange[1] = mid
			}
		}

		even = !even
		bits++
		if bits == 5 {
			out.WriteByte(geohashBase32[ch])
			bits = 0
			ch = 0
		}
	}
	return out.String()
}
