package render

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/MrWong99/dubctl/internal/model"
	"github.com/MrWong99/dubctl/internal/registry"
)

// ReportEntry is one utterance's synthesis outcome in the run summary.
type ReportEntry struct {
	UttID      string  `json:"utt_id"`
	Status     string  `json:"status"`
	VoiceID    string  `json:"voice_id"`
	Rate       float64 `json:"rate,omitempty"`
	DurationMs int     `json:"duration_ms"`
	BudgetMs   int     `json:"budget_ms"`
}

// NearMiss records a glossary entry that almost matched an utterance's
// source text but was not injected.
type NearMiss struct {
	UttID   string `json:"utt_id"`
	Surface string `json:"surface"`
	Target  string `json:"target"`
}

// Totals aggregates per-status segment counts.
type Totals struct {
	OK     int `json:"ok"`
	Cached int `json:"cached"`
	Failed int `json:"failed"`
}

// Report is the run summary written to tts/report.json and echoed as a
// table on stdout at the end of a run.
type Report struct {
	Totals             Totals        `json:"totals"`
	Utterances         []ReportEntry `json:"utterances"`
	GlossaryNearMisses []NearMiss    `json:"glossary_near_misses,omitempty"`
}

// BuildReport assembles the run summary from the dub model and segment
// index. Entries follow the dub model's utterance order.
func BuildReport(dm model.DubModel, index model.SegmentIndex, nearMisses []NearMiss) Report {
	r := Report{GlossaryNearMisses: nearMisses}
	for _, u := range dm.Utterances {
		seg, ok := index[u.UttID]
		if !ok {
			continue
		}
		r.Utterances = append(r.Utterances, ReportEntry{
			UttID:      u.UttID,
			Status:     string(seg.Status),
			VoiceID:    seg.VoiceID,
			Rate:       seg.Rate,
			DurationMs: seg.DurationMs,
			BudgetMs:   u.BudgetMs,
		})
		switch seg.Status {
		case model.SegmentOK:
			r.Totals.OK++
		case model.SegmentCached:
			r.Totals.Cached++
		case model.SegmentFailed:
			r.Totals.Failed++
		}
	}
	return r
}

// CollectNearMisses scans every dub-model utterance's source text against
// the glossary and returns the near misses in utterance order.
func CollectNearMisses(dm model.DubModel, gl *registry.Glossary) []NearMiss {
	if gl == nil {
		return nil
	}
	var out []NearMiss
	for _, u := range dm.Utterances {
		for _, e := range gl.NearMisses(u.TextSource) {
			out = append(out, NearMiss{UttID: u.UttID, Surface: e.Surface, Target: e.Target})
		}
	}
	return out
}

// WriteTable renders the report as an aligned text table.
func (r Report) WriteTable(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UTTERANCE\tSTATUS\tVOICE\tRATE\tDURATION\tBUDGET")
	for _, e := range r.Utterances {
		rate := "-"
		if e.Rate > 1.0 {
			rate = fmt.Sprintf("%.2fx", e.Rate)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%dms\t%dms\n", e.UttID, e.Status, e.VoiceID, rate, e.DurationMs, e.BudgetMs)
	}
	fmt.Fprintf(tw, "\nok %d\tcached %d\tfailed %d\n", r.Totals.OK, r.Totals.Cached, r.Totals.Failed)

	if len(r.GlossaryNearMisses) > 0 {
		misses := make([]NearMiss, len(r.GlossaryNearMisses))
		copy(misses, r.GlossaryNearMisses)
		sort.Slice(misses, func(i, j int) bool {
			if misses[i].UttID != misses[j].UttID {
				return misses[i].UttID < misses[j].UttID
			}
			return misses[i].Surface < misses[j].Surface
		})
		fmt.Fprintln(tw, "\nGLOSSARY NEAR MISSES")
		for _, m := range misses {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", m.UttID, m.Surface, m.Target)
		}
	}
	tw.Flush()
}
