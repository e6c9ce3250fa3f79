package logio

import (
	"strings"
	"testing"

	"github.com/rawblock/eventlog-pretsa/pkg/models"
)

func TestReadTable_RequiredColumnsOnly(t *testing.T) {
	input := "Case ID;Activity;Duration\nc1;A;10\nc1;B;20\nc2;A;5\n"
	records, err := ReadTable(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].CaseID != "c1" || records[0].Activity != "A" || records[0].Duration != 10 {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	if records[0].HolderID != "" {
		t.Errorf("expected empty HolderID when column absent, got %q", records[0].HolderID)
	}
}

func TestReadTable_OptionalHolderColumn(t *testing.T) {
	input := "Case ID;Activity;Duration;Holder_ID\nc1;A;10;h1\n"
	records, err := ReadTable(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if records[0].HolderID != "h1" {
		t.Errorf("HolderID = %q, want h1", records[0].HolderID)
	}
}

func TestReadTable_MissingRequiredColumnErrors(t *testing.T) {
	input := "Case ID;Activity\nc1;A\n"
	if _, err := ReadTable(strings.NewReader(input)); err == nil {
		t.Error("expected error for missing Duration column")
	}
}

func TestReadTable_NonNumericDurationErrors(t *testing.T) {
	input := "Case ID;Activity;Duration\nc1;A;notanumber\n"
	if _, err := ReadTable(strings.NewReader(input)); err == nil {
		t.Error("expected error for non-numeric duration")
	}
}

func TestReadTable_NegativeDurationErrors(t *testing.T) {
	input := "Case ID;Activity;Duration\nc1;A;-5\n"
	if _, err := ReadTable(strings.NewReader(input)); err == nil {
		t.Error("expected error for negative duration")
	}
}

func TestWriteTable_RoundTripsWithHolder(t *testing.T) {
	events := []models.SanitizedEvent{
		{CaseID: "c1", Activity: "A", Duration: 10, EventNr: 1, HolderID: "h1"},
		{CaseID: "c1", Activity: "B", Duration: 20, EventNr: 2, HolderID: "h1"},
	}
	var buf strings.Builder
	if err := WriteTable(&buf, events, true); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}

	records, err := ReadTable(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("re-reading written table: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[1].HolderID != "h1" {
		t.Errorf("HolderID not preserved through round trip: %+v", records[1])
	}
}
