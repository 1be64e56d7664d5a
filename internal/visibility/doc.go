// Package visibility assembles what a user may see: the site tree under
// their accessible sites plus every device that has no floor.
//
// Unassigned devices have no site path, so they are visible to everyone.
// Views carry each device's latest status; history is included only when
// asked for.
package visibility
