package cache

import (
	"strconv"
	"strings"
)

// Key classes. The class is the first key segment and labels metrics.
const (
	ClassEvents    = "events"
	ClassSpheres   = "spheres"
	ClassAnalytics = "analytics"
)

func join(parts ...string) string { return strings.Join(parts, ":") }

// EventListPrefix covers every cached event list of a user.
func EventListPrefix(userID string) string { return join(ClassEvents, "list", userID) + ":" }

// EventListKey identifies one cached page of events.
func EventListKey(userID, fingerprint, token string, size int) string {
	return EventListPrefix(userID) + join(fingerprint, strconv.Itoa(size), token)
}

// EventKey identifies one cached event.
func EventKey(userID, id string) string { return join(ClassEvents, "one", userID, id) }

// SphereListKey identifies the cached sphere list of a user.
func SphereListKey(userID string) string { return join(ClassSpheres, "list", userID) }

// SphereKey identifies one cached sphere.
func SphereKey(userID, id string) string { return join(ClassSpheres, "one", userID, id) }

// AnalyticsPrefix covers every cached analytics result of a user.
func AnalyticsPrefix(userID string) string { return join(ClassAnalytics, userID) + ":" }

// AnalyticsKey identifies the analytics of one date range.
func AnalyticsKey(userID, from, to string) string { return AnalyticsPrefix(userID) + join(from, to) }

func class(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
