package transcript

import "sort"

// stitch recombines per-chunk segments into one global timeline. Each
// chunk's segments carry in-chunk timestamps; stitching adds the
// chunk window's start offset, trims anything the service reported
// past the window's nominal end, and sorts the concatenation.
func stitch(windows []ChunkWindow, perChunk [][]Segment) []Segment {
	var out []Segment
	for i, w := range windows {
		for _, s := range perChunk[i] {
			start := s.Start + w.Start
			end := s.End + w.Start

			// Content reported beyond the window belongs to the next
			// chunk, which transcribed it itself. Trim, never overlap.
			// This also absorbs the packet-boundary drift of the
			// copy-mode ffmpeg split.
			if start >= w.End {
				continue
			}
			if end > w.End {
				end = w.End
			}
			out = append(out, Segment{Start: start, End: end, Text: s.Text})
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Start < out[b].Start
	})
	return out
}
