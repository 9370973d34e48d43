package detect

import (
	"time"

	"applysharp/internal/types"
)

const (
	fieldTitle         = "title"
	fieldDates         = "dates"
	fieldTitleAndDates = "title_and_dates"
)

// contradictions pairs CV and LinkedIn entries that start in the same year
// and reports the pairs whose label or period differ.
func contradictions(cvText, linkedInText string, now time.Time) []types.Contradiction {
	cvEntries := parseEntries(cvText, now)
	liEntries := parseEntries(linkedInText, now)
	used := make([]bool, len(liEntries))

	var out []types.Contradiction
	for _, cv := range cvEntries {
		best, bestOverlap := -1, -1
		for i, li := range liEntries {
			if used[i] || li.Start.Year != cv.Start.Year {
				continue
			}
			if o := labelOverlap(cv.Label, li.Label); o > bestOverlap {
				best, bestOverlap = i, o
			}
		}
		if best < 0 {
			continue
		}
		used[best] = true
		li := liEntries[best]

		titleDiffers := cv.Label != "" && li.Label != "" && cv.Label != li.Label
		datesDiffer := !cv.samePeriod(li)

		field := ""
		switch {
		case titleDiffers && datesDiffer:
			field = fieldTitleAndDates
		case titleDiffers:
			field = fieldTitle
		case datesDiffer:
			field = fieldDates
		default:
			continue
		}

		out = append(out, types.Contradiction{
			Field:         field,
			CVClaim:       cv.Claim,
			LinkedInClaim: li.Claim,
		})
	}
	return out
}
