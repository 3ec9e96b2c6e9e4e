// internal/batch/reporter.go - Console progress reporting
package batch

import (
	"fmt"
	"io"
	"time"
)

// ConsoleProgressReporter writes a single updating progress line
type ConsoleProgressReporter struct {
	out        io.Writer
	interval   time.Duration
	lastUpdate time.Time
}

// NewConsoleProgressReporter creates a reporter that redraws at most once
// per interval
func NewConsoleProgressReporter(out io.Writer, interval time.Duration) *ConsoleProgressReporter {
	return &ConsoleProgressReporter{out: out, interval: interval}
}

// ReportProgress reports run progress. A finished run is not redrawn, and
// the ETA is shown only while the run is in progress.
func (r *ConsoleProgressReporter) ReportProgress(job *Job) error {
	if job.IsComplete() || time.Since(r.lastUpdate) < r.interval {
		return nil
	}

	p := job.Progress
	eta := ""
	if job.IsRunning() && p.EstimatedEnd != nil {
		eta = fmt.Sprintf(", ETA %s", time.Until(*p.EstimatedEnd).Round(time.Second))
	}
	_, err := fmt.Fprintf(r.out, "\rProgress: %.1f%% (%d/%d tiles, %d degraded, %.2f tiles/sec%s)",
		p.CalculateProgress(), p.ProcessedTiles, p.TotalTiles, p.DegradedTiles, p.Throughput, eta)

	r.lastUpdate = time.Now()
	return err
}

// ReportTileComplete reports a finished tile
func (r *ConsoleProgressReporter) ReportTileComplete(job *Job, result *TileResult) error {
	return r.ReportProgress(job)
}

// ReportJobComplete reports run completion
func (r *ConsoleProgressReporter) ReportJobComplete(job *Job) error {
	p := job.Progress
	_, err := fmt.Fprintf(r.out, "\rCompleted: %d tiles (%d with roads, %d with buildings, %d images) -> %s\n",
		p.ProcessedTiles, p.RoadTiles, p.BldgTiles, p.ImagesWritten, job.BatchPath)
	return err
}

// ReportJobFailed reports run failure or cancellation
func (r *ConsoleProgressReporter) ReportJobFailed(job *Job, err error) error {
	_, werr := fmt.Fprintf(r.out, "\r%s: %s\n", job.Status, err.Error())
	return werr
}
