package school

import "sort"

// Listing orders: latest announcements, polls and resources first, exams chronologically.

func SortAnnouncements(items []Announcement) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Date.After(items[j].Date) })
}

func SortExams(items []Exam) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].StartsAt().Before(items[j].StartsAt()) })
}

func SortPolls(items []Poll) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
}

func SortResources(items []Resource) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
}

func SortClassGroups(items []ClassGroup) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
}
