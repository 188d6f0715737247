package school

import "github.com/trezcool/taarifa/core/user"

// CanSee reports whether `viewer` may see `item`: school-wide items are visible to everyone,
// class items to the members of that class, and everything to unrestricted roles.
func CanSee(viewer user.User, item Targeted) bool {
	if viewer.IsUnrestricted() {
		return true
	}
	target := item.Target()
	return target == nil || viewer.InClass(*target)
}

// Visible returns the items of `items` visible to `viewer`, in their original order.
func Visible[T Targeted](viewer user.User, items []T) []T {
	if viewer.IsUnrestricted() {
		return items
	}
	visible := make([]T, 0, len(items))
	for _, item := range items {
		if CanSee(viewer, item) {
			visible = append(visible, item)
		}
	}
	return visible
}
