// Package loader runs the ingestion pipeline over an ordered list of roots.
package loader

import (
	"errors"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/zhaobenny/ccwrapped/internal/aggregator"
	"github.com/zhaobenny/ccwrapped/internal/dedup"
	"github.com/zhaobenny/ccwrapped/internal/model"
	"github.com/zhaobenny/ccwrapped/internal/parser"
	"github.com/zhaobenny/ccwrapped/internal/source"
)

// ErrNoData is returned when none of the roots could be read
var ErrNoData = errors.New("no data found")

const progressInterval = 2 * time.Second

// Options configures a load
type Options struct {
	// Location is the user's zone. Nil means time.Local.
	Location       *time.Location
	IncludeHistory bool
	Logger         *slog.Logger
}

// SourceReport summarizes what was read from one root
type SourceReport struct {
	Root      string        `json:"root"`
	Layout    source.Layout `json:"layout"`
	Streams   int           `json:"streams"`
	Records   int           `json:"records"`
	Messages  int           `json:"messages"`
	Malformed int           `json:"malformed"`
	Dropped   int           `json:"dropped"`
	Error     string        `json:"error,omitempty"`
	Err       error         `json:"-"`
	Warnings  []error       `json:"-"`
}

// Result is the merged message set and one report per root
type Result struct {
	Messages []model.Message
	Sources  []SourceReport
}

// Load reads roots in order and merges them. Later roots win when the same
// message appears in more than one. Unreadable roots are skipped and
// reported; ErrNoData is returned only when every root was unreadable.
func Load(roots []string, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	merger := dedup.New()
	result := &Result{}
	progress := rate.Sometimes{Interval: progressInterval}

	for _, root := range Roots(roots) {
		report := SourceReport{Root: root}

		src, err := source.Discover(root, source.Options{IncludeHistory: opts.IncludeHistory})
		if err != nil {
			logger.Warn("skipping source", "root", root, "error", err)
			report.Err = err
			report.Error = err.Error()
			result.Sources = append(result.Sources, report)
			continue
		}

		report.Layout = src.Layout
		report.Streams = len(src.Streams)
		report.Warnings = src.Warnings
		for _, w := range src.Warnings {
			logger.Warn("source walk", "root", root, "error", w)
		}
		logger.Debug("discovered source", "root", root, "layout", src.Layout, "streams", len(src.Streams))

		for i, stream := range src.Streams {
			norm := parser.Normalizer{Location: loc, Project: stream.Project, Source: root}

			var counts parser.Counts
			for rec := range stream.Records(&counts) {
				if msg, ok := norm.Normalize(rec); ok {
					merger.Add(msg)
					report.Messages++
				}
			}
			if counts.Err != nil {
				logger.Warn("reading stream", "path", stream.Path, "error", counts.Err)
			}

			report.Records += counts.Records
			report.Malformed += counts.Malformed
			report.Dropped += counts.Dropped

			progress.Do(func() {
				logger.Info("scanning", "root", root, "stream", i+1, "of", len(src.Streams), "messages", merger.Len())
			})
		}

		result.Sources = append(result.Sources, report)
	}

	if !lo.SomeBy(result.Sources, func(r SourceReport) bool { return r.Err == nil }) {
		return result, ErrNoData
	}

	result.Messages = merger.Messages()
	logger.Debug("merged sources", "roots", len(result.Sources), "messages", len(result.Messages))
	return result, nil
}

// Roots drops empty entries and repeats from an ordered root list. A repeated
// root keeps its last position, since later roots take priority.
func Roots(roots []string) []string {
	roots = lo.Compact(roots)
	seen := make(map[string]bool, len(roots))
	out := make([]string, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		if !seen[roots[i]] {
			seen[roots[i]] = true
			out = append(out, roots[i])
		}
	}
	slices.Reverse(out)
	return out
}

// Run loads roots and aggregates the merged messages
func Run(roots []string, opts Options, aggOpts aggregator.Options) (*aggregator.Snapshot, *Result, error) {
	result, err := Load(roots, opts)
	if err != nil {
		return nil, result, err
	}
	return aggregator.Aggregate(result.Messages, aggOpts), result, nil
}
