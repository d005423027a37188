package archive

import (
	"errors"
	"time"
)

// ErrNotFound is returned when an issue lookup exhausts every matching stage.
var ErrNotFound = errors.New("issue not found")

// Issue is one archived magazine edition.
type Issue struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	PublicationDate time.Time `json:"publication_date"`
	DocumentKey     string    `json:"document_key"`
	ExtractedText   string    `json:"extracted_text"`
	Summary         string    `json:"summary"`
	CoverImageURL   *string   `json:"cover_image_url,omitempty"`
	SourceURL       string    `json:"source_url"`
	DocumentHash    string    `json:"document_hash"`
	DocumentSize    int64     `json:"document_size"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasText reports whether extraction produced any text for the issue.
func (i Issue) HasText() bool {
	return i.ExtractedText != ""
}

// Candidate is a document link discovered on the archive page.
type Candidate struct {
	Title       string `json:"title"`
	DocumentURL string `json:"document_url"`
}

// Outcome is the terminal state of one candidate within an ingestion run.
type Outcome string

// Per-issue terminal states.
const (
	OutcomeCreated        Outcome = "created"
	OutcomeUpdated        Outcome = "updated"
	OutcomeSkipped        Outcome = "skipped-existing"
	OutcomeFailedDownload Outcome = "failed-download"
	OutcomeFailedWrite    Outcome = "failed-write"
)

// Failure describes a candidate that ended in a failed state.
type Failure struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	DocumentURL string  `json:"document_url"`
	Outcome     Outcome `json:"outcome"`
	Error       string  `json:"error"`
}

// RunCounters aggregates per-issue outcomes for a run.
type RunCounters struct {
	Discovered         int `json:"discovered"`
	Created            int `json:"created"`
	Updated            int `json:"updated"`
	Skipped            int `json:"skipped_existing"`
	FailedDownload     int `json:"failed_download"`
	FailedWrite        int `json:"failed_write"`
	ExtractionFailures int `json:"extraction_failures"`
	NotProcessed       int `json:"not_processed"`
}

// Record increments the counter matching outcome.
func (c *RunCounters) Record(outcome Outcome) {
	switch outcome {
	case OutcomeCreated:
		c.Created++
	case OutcomeUpdated:
		c.Updated++
	case OutcomeSkipped:
		c.Skipped++
	case OutcomeFailedDownload:
		c.FailedDownload++
	case OutcomeFailedWrite:
		c.FailedWrite++
	}
}

// RunReport is the externally observed result of an ingestion run.
type RunReport struct {
	RunID      string      `json:"run_id"`
	ArchiveURL string      `json:"archive_url"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Canceled   bool        `json:"canceled"`
	Counters   RunCounters `json:"counters"`
	Failures   []Failure   `json:"failures"`
}

// IssueEvent is published for every issue that reached a terminal state.
type IssueEvent struct {
	RunID       string    `json:"run_id"`
	IssueID     string    `json:"issue_id"`
	Title       string    `json:"title"`
	DocumentKey string    `json:"document_key,omitempty"`
	Outcome     Outcome   `json:"outcome"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// SearchHit is an issue matched by a search query. TitleMatch is true when the
// query matched the title, which ranks ahead of text-only matches.
type SearchHit struct {
	Issue      Issue
	TitleMatch bool
}

// MissingObject is reported by reconciliation for rows without a backing document.
type MissingObject struct {
	IssueID     string `json:"issue_id"`
	DocumentKey string `json:"document_key"`
}

// ReconcileReport summarizes a reconciliation scan.
type ReconcileReport struct {
	Checked int             `json:"checked"`
	Missing []MissingObject `json:"missing"`
}
