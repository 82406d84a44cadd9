package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conductor-dev/conductor/pkg/models"
)

// toucher records which result touched a path.
type toucher struct {
	result     int
	capability string
}

// detectConflicts flags file paths touched by more than one result in an
// unexpected way: created by multiple results, or created by one result
// and modified by a different one. Conflicts are human-readable strings,
// recorded but never enforced.
func detectConflicts(results []*models.DispatchResult) []string {
	createdBy := make(map[string][]toucher)
	modifiedBy := make(map[string][]toucher)

	for i, r := range results {
		kind := string(r.Capability)
		for _, path := range r.FilesCreated {
			createdBy[path] = append(createdBy[path], toucher{result: i, capability: kind})
		}
		for _, path := range r.FilesModified {
			modifiedBy[path] = append(modifiedBy[path], toucher{result: i, capability: kind})
		}
	}

	var createdPaths []string
	for path := range createdBy {
		createdPaths = append(createdPaths, path)
	}
	sort.Strings(createdPaths)

	conflicts := []string{}
	for _, path := range createdPaths {
		creators := createdBy[path]
		if len(creators) > 1 {
			conflicts = append(conflicts, fmt.Sprintf(
				"file %s created by multiple results: %s", path, joinCapabilities(creators)))
		}

		var crossModifiers []toucher
		for _, m := range modifiedBy[path] {
			if m.result != creators[0].result {
				crossModifiers = append(crossModifiers, m)
			}
		}
		if len(crossModifiers) > 0 {
			conflicts = append(conflicts, fmt.Sprintf(
				"file %s created by %s and modified by %s", path, creators[0].capability, joinCapabilities(crossModifiers)))
		}
	}

	return conflicts
}

// joinCapabilities renders the capability list of a toucher set.
func joinCapabilities(ts []toucher) string {
	kinds := make([]string, 0, len(ts))
	for _, t := range ts {
		kinds = append(kinds, t.capability)
	}
	return strings.Join(kinds, ", ")
}
