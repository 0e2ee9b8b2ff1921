// Package models contains shared data models used across the SciVid codebase.
package models

import "time"

// Paper is the structured input document a pipeline run starts from, stored as
// paper.json in the job's artifact directory. For PubMed jobs it is written by
// the fetch-paper step; for uploaded documents it is pre-supplied by the upload
// path before the pipeline starts.
type Paper struct {
	PaperID   string    `json:"paper_id"`
	Title     string    `json:"title"`
	Authors   []string  `json:"authors,omitempty"`
	Journal   string    `json:"journal,omitempty"`
	FullText  string    `json:"full_text"`
	Figures   []Figure  `json:"figures,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Figure is an optional figure reference extracted alongside the paper text.
type Figure struct {
	ID      string `json:"id"`
	URL     string `json:"url,omitempty"`
	Caption string `json:"caption,omitempty"`
}
