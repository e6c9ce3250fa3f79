// Package logio reads and writes the semicolon-delimited event tables
// the engine exchanges with its CSV-ingestion collaborator (spec.md §6).
package logio

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rawblock/eventlog-pretsa/pkg/models"
)

const delimiter = ';'

const (
	colCaseID   = "Case ID"
	colActivity = "Activity"
	colDuration = "Duration"
	colHolderID = "Holder_ID"
	colEventNr  = "Event_Nr"
)

// ReadTable parses a semicolon-delimited table with a header line into
// event records. Required columns are Case ID, Activity, Duration;
// Holder_ID is optional. Duration must parse as a finite non-negative
// real number.
func ReadTable(r io.Reader) ([]models.EventRecord, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.TrimSpace(col)] = i
	}

	caseIdx, ok := idx[colCaseID]
	if !ok {
		return nil, fmt.Errorf("missing required column %q", colCaseID)
	}
	actIdx, ok := idx[colActivity]
	if !ok {
		return nil, fmt.Errorf("missing required column %q", colActivity)
	}
	durIdx, ok := idx[colDuration]
	if !ok {
		return nil, fmt.Errorf("missing required column %q", colDuration)
	}
	holderIdx, hasHolder := idx[colHolderID]

	var records []models.EventRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}

		duration, err := strconv.ParseFloat(strings.TrimSpace(row[durIdx]), 64)
		if err != nil || duration < 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
			return nil, fmt.Errorf("non-numeric, non-finite or negative duration %q for case %q", row[durIdx], row[caseIdx])
		}

		rec := models.EventRecord{
			CaseID:   row[caseIdx],
			Activity: row[actIdx],
			Duration: duration,
		}
		if hasHolder && holderIdx < len(row) {
			rec.HolderID = row[holderIdx]
		}
		records = append(records, rec)
	}

	return records, nil
}

// WriteTable serializes sanitized events to the same semicolon-delimited
// schema, adding the mandatory Event_Nr column and the Holder_ID column
// when includeHolder is set.
func WriteTable(w io.Writer, events []models.SanitizedEvent, includeHolder bool) error {
	cw := csv.NewWriter(w)
	cw.Comma = delimiter

	header := []string{colCaseID, colActivity, colDuration, colEventNr}
	if includeHolder {
		header = append(header, colHolderID)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, e := range events {
		row := []string{
			e.CaseID,
			e.Activity,
			strconv.FormatFloat(e.Duration, 'f', -1, 64),
			strconv.Itoa(e.EventNr),
		}
		if includeHolder {
			row = append(row, e.HolderID)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
