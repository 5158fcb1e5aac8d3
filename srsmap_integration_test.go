//go:build integration && cgo

package srsmap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aayushanand1411/srsmap/store"
)

// Requires a local ollama with the default chat and embedding models
// pulled. Run with: go test -tags=integration -run Integration -v .
const integrationTimeout = 5 * time.Minute

var srsLines = []string{
	"ACME Corp",
	"Software Requirements Specification",
	"Rev 2.1",
	"",
	"## 1 Introduction",
	"This document specifies the flight data recorder software.",
	"",
	"## 2 Applicable Documents",
	"MIL-STD-498, DO-178C.",
	"",
	"## 6 Hardware Requirements",
	"The unit shall operate from 18 to 36 VDC.",
}

func TestIntegrationMapAndVerify(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), integrationTimeout)
	defer cancel()

	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "integration.db")

	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer eng.Close()

	res, err := eng.MapLines(ctx, "integration.md", srsLines)
	if err != nil {
		t.Fatalf("MapLines() error = %v", err)
	}
	if res.RunID == 0 {
		t.Fatal("expected persisted run")
	}

	cover, ok := res.Results.Get("Cover Page")
	if !ok || cover.Content == "" {
		t.Error("expected cover page content")
	}
	intro, ok := res.Results.Get("1 Introduction")
	if !ok || !intro.Assigned() {
		t.Errorf("expected introduction assigned, got %+v", intro)
	}

	if _, err := eng.Store().AddQuestion(ctx, store.Question{
		DocType:          "SRS",
		Question:         "Does the document state supply voltage requirements?",
		SubQuestions:     []string{"Is a DC voltage range specified?"},
		ReferenceSection: "6 Hardware Requirements",
		Weight:           1,
		SubWeights:       []float64{10},
	}); err != nil {
		t.Fatal(err)
	}

	report, err := eng.Verify(ctx, res.RunID, "SRS")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(report.Questions) != 1 {
		t.Fatalf("expected 1 judged question, got %d", len(report.Questions))
	}
	if report.Total < 0 || report.Total > 10 {
		t.Errorf("total = %v, want within [0,10]", report.Total)
	}

	verdicts, err := eng.Store().GetVerdicts(ctx, res.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if len(verdicts) != 1 {
		t.Errorf("expected persisted verdict, got %d", len(verdicts))
	}
}
