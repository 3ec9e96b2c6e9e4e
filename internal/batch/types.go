// internal/batch/types.go - Per-tile pipeline and run types
package batch

import (
	"time"

	"github.com/valpere/tilemani/internal/output"
	"github.com/valpere/tilemani/internal/render"
	"github.com/valpere/tilemani/internal/tile"
)

// TileRecord is the per-tile summary collected into the batch
type TileRecord = output.TileRecord

// State is the position of a tile in the pipeline. Every tile ends in
// StatePersisted, however degraded.
type State int

const (
	StatePending State = iota
	StateRetrieved
	StateRasterized
	StateStatsComputed
	StatePersisted
)

// String returns a string representation of the state
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRetrieved:
		return "retrieved"
	case StateRasterized:
		return "rasterized"
	case StateStatsComputed:
		return "stats_computed"
	case StatePersisted:
		return "persisted"
	default:
		return "unknown"
	}
}

// Layer labels used in logs and metrics
const (
	LayerRoad     = "road"
	LayerBuilding = "building"
)

// TileResult is the outcome of one tile
type TileResult struct {
	Entry    tile.Entry
	Location tile.Location
	State    State
	Record   *TileRecord
	Images   []render.Artifact
	Files    []string
	Errors   []error
	Duration time.Duration
}

// Degraded reports whether any stage failed for this tile
func (r *TileResult) Degraded() bool {
	return len(r.Errors) > 0
}

// JobStatus represents the current status of a run
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// String returns a string representation of the job status
func (s JobStatus) String() string {
	return string(s)
}

// IsValid checks if the job status is valid
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCanceled:
		return true
	default:
		return false
	}
}

// Job is one run over the tiles of a city, style and zoom
type Job struct {
	ID          string
	City        string
	Style       string
	Zoom        string
	Status      JobStatus
	Progress    *JobProgress
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	BatchPath   string
	Error       error
}

// JobProgress tracks the progress of a run
type JobProgress struct {
	TotalTiles     int64
	ProcessedTiles int64
	DegradedTiles  int64
	RoadTiles      int64
	BldgTiles      int64
	ImagesWritten  int64
	StartTime      time.Time
	EstimatedEnd   *time.Time
	Throughput     float64
}

// ProgressReporter receives run progress
type ProgressReporter interface {
	ReportProgress(job *Job) error
	ReportTileComplete(job *Job, result *TileResult) error
	ReportJobComplete(job *Job) error
	ReportJobFailed(job *Job, err error) error
}

// NewJob creates a pending run
func NewJob(id, city, style, zoom string) *Job {
	return &Job{
		ID:        id,
		City:      city,
		Style:     style,
		Zoom:      zoom,
		Status:    JobStatusPending,
		Progress:  NewJobProgress(),
		CreatedAt: time.Now(),
	}
}

// NewJobProgress creates a new progress tracker
func NewJobProgress() *JobProgress {
	return &JobProgress{StartTime: time.Now()}
}

// IsComplete returns true if the run has finished
func (j *Job) IsComplete() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed || j.Status == JobStatusCanceled
}

// IsRunning returns true if the run is in progress
func (j *Job) IsRunning() bool {
	return j.Status == JobStatusRunning
}

// Record folds a tile result into the counters
func (p *JobProgress) Record(result *TileResult) {
	p.ProcessedTiles++
	if result.Degraded() {
		p.DegradedTiles++
	}
	if result.Record != nil {
		if result.Record.RetrievedRoad {
			p.RoadTiles++
		}
		if result.Record.RetrievedBldg {
			p.BldgTiles++
		}
	}
	p.ImagesWritten += int64(len(result.Images))
	p.UpdateThroughput()

	end := p.EstimateCompletion()
	p.EstimatedEnd = &end
}

// EstimateCompletion estimates when the run will finish based on throughput
func (p *JobProgress) EstimateCompletion() time.Time {
	if p.Throughput == 0 || p.ProcessedTiles == 0 {
		return time.Now().Add(time.Hour)
	}

	remaining := p.TotalTiles - p.ProcessedTiles
	if remaining <= 0 {
		return time.Now()
	}

	secondsRemaining := float64(remaining) / p.Throughput
	return time.Now().Add(time.Duration(secondsRemaining * float64(time.Second)))
}

// CalculateProgress calculates the completion percentage
func (p *JobProgress) CalculateProgress() float64 {
	if p.TotalTiles == 0 {
		return 0
	}
	return float64(p.ProcessedTiles) / float64(p.TotalTiles) * 100
}

// UpdateThroughput updates the tiles per second rate
func (p *JobProgress) UpdateThroughput() {
	elapsed := time.Since(p.StartTime)
	if elapsed.Seconds() > 0 && p.ProcessedTiles > 0 {
		p.Throughput = float64(p.ProcessedTiles) / elapsed.Seconds()
	}
}
