// Package audit samples imported deals and checks that the accounts they
// reference exist. It never writes.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"dealops/internal/logging"
	"dealops/internal/store"
)

const DefaultSampleSize = 3

// Hypothesis explains the usual cause of missing account references.
const Hypothesis = "the CRM import was windowed (time range or row cap) and excluded accounts " +
	"that imported deals still reference"

type Status string

const (
	StatusExists       Status = "exists"
	StatusNotFound     Status = "NOT FOUND"
	StatusLookupFailed Status = "lookup failed"
)

// Finding is the outcome of checking one sampled deal's account reference.
type Finding struct {
	DealID      string
	AccountID   string
	Status      Status
	AccountName string
	Err         error
}

func (f Finding) MarshalJSON() ([]byte, error) {
	out := struct {
		DealID      string `json:"deal_id"`
		AccountID   string `json:"account_id"`
		Status      Status `json:"status"`
		AccountName string `json:"account_name,omitempty"`
		Error       string `json:"error,omitempty"`
	}{DealID: f.DealID, AccountID: f.AccountID, Status: f.Status, AccountName: f.AccountName}
	if f.Err != nil {
		out.Error = f.Err.Error()
	}
	return json.Marshal(out)
}

// SampleError records a sample read that could not be performed.
type SampleError struct {
	Sample string
	Err    error
}

func (e SampleError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"sample": e.Sample, "error": e.Err.Error()})
}

type Report struct {
	Unlinked   []store.Deal  `json:"unlinked"`
	Findings   []Finding     `json:"findings"`
	ReadErrors []SampleError `json:"read_errors,omitempty"`
	Hypothesis string        `json:"hypothesis,omitempty"`
}

// Missing returns the number of sampled references whose account is absent.
func (r Report) Missing() int {
	n := 0
	for _, f := range r.Findings {
		if f.Status == StatusNotFound {
			n++
		}
	}
	return n
}

type dataStore interface {
	ListDeals(context.Context, store.ListOptions) ([]store.Deal, error)
	GetAccount(context.Context, string) (store.Account, error)
}

type Auditor struct {
	store      dataStore
	logger     *zap.Logger
	sampleSize int
}

func New(s dataStore, logger *zap.Logger, sampleSize int) *Auditor {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Auditor{store: s, logger: logging.OrNop(logger).Named("audit"), sampleSize: sampleSize}
}

// Run takes both samples and looks up every referenced account. Failed reads
// are recorded in the report and the audit carries on.
func (a *Auditor) Run(ctx context.Context) Report {
	var report Report

	unlinked, err := a.sample(ctx, store.Filter{IDPrefix: store.ExternalPrefix, IsNull: []string{"account_id"}})
	if err != nil {
		a.logger.Warn("sample unlinked deals", zap.Error(err))
		report.ReadErrors = append(report.ReadErrors, SampleError{Sample: "deals without account", Err: err})
	}
	report.Unlinked = unlinked

	linked, err := a.sample(ctx, store.Filter{IDPrefix: store.ExternalPrefix, NotNull: []string{"account_id"}})
	if err != nil {
		a.logger.Warn("sample linked deals", zap.Error(err))
		report.ReadErrors = append(report.ReadErrors, SampleError{Sample: "deals with account", Err: err})
	}

	for _, d := range linked {
		report.Findings = append(report.Findings, a.check(ctx, d))
	}
	if report.Missing() > 0 {
		report.Hypothesis = Hypothesis
	}
	return report
}

func (a *Auditor) sample(ctx context.Context, f store.Filter) ([]store.Deal, error) {
	deals, err := a.store.ListDeals(ctx, store.ListOptions{Filter: f, Limit: a.sampleSize})
	if err != nil {
		return nil, fmt.Errorf("sample deals: %w", err)
	}
	return deals, nil
}

func (a *Auditor) check(ctx context.Context, d store.Deal) Finding {
	f := Finding{DealID: d.ID, AccountID: store.Deref(d.AccountID, "")}
	account, err := a.store.GetAccount(ctx, f.AccountID)
	switch {
	case err == nil:
		f.Status = StatusExists
		f.AccountName = account.Name
	case errors.Is(err, store.ErrNotFound):
		f.Status = StatusNotFound
		a.logger.Info("dangling account reference", zap.String("deal_id", d.ID), zap.String("account_id", f.AccountID))
	default:
		f.Status = StatusLookupFailed
		f.Err = err
		a.logger.Warn("account lookup", zap.String("deal_id", d.ID), zap.String("account_id", f.AccountID), zap.Error(err))
	}
	return f
}

// Lines renders the report for the console.
func (r Report) Lines() []string {
	lines := []string{fmt.Sprintf("deals without account (sample of %d):", len(r.Unlinked))}
	for _, d := range r.Unlinked {
		lines = append(lines, fmt.Sprintf("  %s  %s", d.ID, d.Title))
	}
	lines = append(lines, fmt.Sprintf("deals with account (sample of %d):", len(r.Findings)))
	for _, f := range r.Findings {
		switch f.Status {
		case StatusExists:
			lines = append(lines, fmt.Sprintf("  %s -> %s: %s (%s)", f.DealID, f.AccountID, f.Status, f.AccountName))
		case StatusLookupFailed:
			lines = append(lines, fmt.Sprintf("  %s -> %s: %s: %v", f.DealID, f.AccountID, f.Status, f.Err))
		default:
			lines = append(lines, fmt.Sprintf("  %s -> %s: %s", f.DealID, f.AccountID, f.Status))
		}
	}
	for _, e := range r.ReadErrors {
		lines = append(lines, fmt.Sprintf("could not read %s: %v", e.Sample, e.Err))
	}
	if r.Hypothesis != "" {
		lines = append(lines, fmt.Sprintf("%d of %d referenced accounts missing; likely cause: %s",
			r.Missing(), len(r.Findings), r.Hypothesis))
	}
	return lines
}
