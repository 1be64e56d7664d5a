// Package location stores the physical hierarchy: sites, buildings,
// floors and the plan maps attached to sites or floors.
//
// Deleting a site, building or floor is not done here; the cascade
// package owns those multi-table deletions.
package location
