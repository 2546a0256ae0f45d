package simm

import (
	"math"
	"strconv"
	"strings"
)

// normalQuantile995 is the 99.5th percentile of the standard normal
// distribution, the q entering the curvature lambda factor.
const normalQuantile995 = 2.5758293035489004

// lambda is the curvature scaling factor lambda(theta) = (q^2-1)(1+theta) - theta.
func lambda(theta float64) float64 {
	return (normalQuantile995*normalQuantile995-1.0)*(1.0+theta) - theta
}

// closeEnough reports whether two floats agree to within 42 ulps, matching
// the tolerance used when comparing margin amounts for regulation ties.
func closeEnough(x, y float64) bool {
	if x == y {
		return true
	}
	const tol = 42 * 2.220446049250313e-16
	diff := math.Abs(x - y)
	if x == 0 || y == 0 {
		return diff < tol*tol
	}
	return diff <= tol*math.Abs(x) || diff <= tol*math.Abs(y)
}

// clampToBucket is the S_b term of cross-bucket aggregation: the bucket's
// weighted sensitivity sum clamped to [-K_b, K_b].
func clampToBucket(sum, k float64) float64 {
	return math.Max(math.Min(sum, k), -k)
}

// parseVersion splits a methodology version string like "2.3" into its
// numeric parts. Unparseable components count as zero.
func parseVersion(v string) (major, minor int) {
	parts := strings.SplitN(strings.TrimSpace(v), ".", 3)
	if len(parts) > 0 {
		major, _ = strconv.Atoi(parts[0])
	}
	if len(parts) > 1 {
		minor, _ = strconv.Atoi(parts[1])
	}
	return major, minor
}

// versionAtLeast reports whether version v is maj.min or later.
func versionAtLeast(v string, maj, min int) bool {
	a, b := parseVersion(v)
	return a > maj || (a == maj && b >= min)
}

// versionAfter reports whether version v is strictly later than maj.min.
func versionAfter(v string, maj, min int) bool {
	a, b := parseVersion(v)
	return a > maj || (a == maj && b > min)
}
