// Package keys builds and parses the cache keys used across the app.
//
// A key is "<namespace>:<identifier>", e.g. "user_avatar:42".
package keys

import (
	"fmt"
	"strings"
)

// Namespace identifies what kind of value a key points at.
type Namespace string

const (
	NSUserAvatar     Namespace = "user_avatar"
	NSUserProfile    Namespace = "user_profile"
	NSProjectDetail  Namespace = "project_detail"
	NSProjectMembers Namespace = "project_members"
	NSRouteData      Namespace = "route_data"
)

const sep = ":"

// UserAvatar is the key of a user's avatar URL.
func UserAvatar(userID string) string { return join(NSUserAvatar, userID) }

// UserProfile is the key of a user's profile record.
func UserProfile(userID string) string { return join(NSUserProfile, userID) }

// ProjectDetail is the key of a project's detail blob.
func ProjectDetail(projectID string) string { return join(NSProjectDetail, projectID) }

// ProjectMembers is the key of a project's member list.
func ProjectMembers(projectID string) string { return join(NSProjectMembers, projectID) }

// RouteData is the key of the data a screen loads for a user.
func RouteData(userID, route string) string { return join(NSRouteData, userID+sep+route) }

func join(ns Namespace, id string) string {
	return string(ns) + sep + id
}

// Parse splits a key into its namespace and identifier.
func Parse(key string) (Namespace, string, error) {
	ns, id, ok := strings.Cut(key, sep)
	if !ok || ns == "" || id == "" {
		return "", "", fmt.Errorf("malformed cache key %q", key)
	}
	return Namespace(ns), id, nil
}
