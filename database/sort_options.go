package database

import (
	"sort"
	"strings"

	"github.com/facette/natsort"

	"github.com/camden-git/studiobackend/models"
)

const (
	SortFilenameAsc = "filename_asc"
	SortFilenameNat = "filename_nat"
	SortDateDesc    = "date_desc"
	SortDateAsc     = "date_asc"
)

const DefaultSortOrder = SortFilenameNat

// IsValidSortOrder checks if a string is a valid sort order constant
func IsValidSortOrder(order string) bool {
	switch order {
	case SortFilenameAsc, SortDateDesc, SortDateAsc, SortFilenameNat:
		return true
	default:
		return false
	}
}

// SortPhotos orders photos in place. Date orders use the capture time and fall
// back to the upload time; ties keep natural filename order.
func SortPhotos(photos []models.Photo, order string) {
	names := make([]string, len(photos))
	for i, p := range photos {
		names[i] = p.Name
	}
	natsort.Sort(names)
	rank := make(map[string]int, len(names))
	for i, n := range names {
		if _, seen := rank[n]; !seen {
			rank[n] = i
		}
	}

	photoTime := func(p models.Photo) int64 {
		if p.TakenAt != nil {
			return p.TakenAt.UnixNano()
		}
		return p.CreatedAt.UnixNano()
	}

	sort.SliceStable(photos, func(i, j int) bool {
		a, b := photos[i], photos[j]
		switch order {
		case SortFilenameAsc:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		case SortDateAsc:
			if ta, tb := photoTime(a), photoTime(b); ta != tb {
				return ta < tb
			}
		case SortDateDesc:
			if ta, tb := photoTime(a), photoTime(b); ta != tb {
				return ta > tb
			}
		}
		return rank[a.Name] < rank[b.Name]
	})
}
