package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/jonwraymond/simrun/run"
)

const (
	formatText = "text"
	formatJSON = "json"
)

type printer interface {
	printResult(runSummary)
	printKey(keySummary)
}

var (
	_ printer = textPrinter{}
	_ printer = jsonPrinter{}
)

func setupPrinter(format string, stdout, stderr io.Writer) printer {
	switch format {
	case formatJSON:
		return jsonPrinter{stdout: stdout}
	default:
		return textPrinter{stdout: stdout, stderr: stderr}
	}
}

// runSummary is the printable form of a run.Result.
type runSummary struct {
	RunName   string         `json:"runName"`
	Workspace string         `json:"workspace"`
	Venue     string         `json:"venue"`
	Document  string         `json:"document"`
	Caching   bool           `json:"caching"`
	Cached    bool           `json:"cached"`
	Lookup    string         `json:"lookup,omitempty"`
	Executed  bool           `json:"executed"`
	ExitCode  int            `json:"exitCode"`
	Missing   []string       `json:"missing,omitempty"`
	Extra     []string       `json:"extra,omitempty"`
	Entry     string         `json:"entry,omitempty"`
	Location  string         `json:"location,omitempty"`
	States    []string       `json:"states"`
	Outputs   map[string]any `json:"outputs,omitempty"`
}

func newRunSummary(res *run.Result) runSummary {
	s := runSummary{
		RunName:   res.RunName,
		Workspace: res.Workspace,
		Venue:     res.Venue.String(),
		Document:  res.Document,
		Caching:   res.Caching,
		Cached:    res.Cached,
		Executed:  res.Executed,
		ExitCode:  res.ExitCode,
		Missing:   res.Missing,
		Extra:     res.Extra,
	}
	if res.Caching && !res.Venue.Trusted() {
		s.Lookup = res.Lookup.String()
	}
	if res.Entry != nil {
		s.Entry = res.Entry.Ref.String()
		s.Location = res.Entry.Location
	}
	for _, st := range res.States {
		s.States = append(s.States, string(st))
	}
	for _, name := range res.SavedOutputs() {
		v, err := res.Read(name, false, false)
		if err != nil {
			continue
		}
		if s.Outputs == nil {
			s.Outputs = make(map[string]any)
		}
		s.Outputs[name] = v
	}
	return s
}

// keySummary is the printable result of a key lookup.
type keySummary struct {
	Ref    string `json:"ref"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type textPrinter struct{ stdout, stderr io.Writer }

func (p textPrinter) printResult(s runSummary) {
	var b strings.Builder
	fmt.Fprintf(&b, "run:       %s\n", s.RunName)
	fmt.Fprintf(&b, "workspace: %s\n", s.Workspace)
	fmt.Fprintf(&b, "venue:     %s\n", s.Venue)
	switch {
	case s.Cached && s.Entry == "":
		b.WriteString("cache:     hit\n")
	case s.Cached:
		fmt.Fprintf(&b, "cache:     hit %s\n", s.Entry)
	case !s.Caching:
		b.WriteString("cache:     disabled\n")
	case s.Entry != "":
		fmt.Fprintf(&b, "cache:     published %s\n", s.Entry)
	default:
		b.WriteString("cache:     not published\n")
	}
	if s.Executed {
		fmt.Fprintf(&b, "exit:      %d\n", s.ExitCode)
	}
	for _, name := range slices.Sorted(maps.Keys(s.Outputs)) {
		fmt.Fprintf(&b, "  %s = %v\n", name, s.Outputs[name])
	}
	io.WriteString(p.stdout, b.String())

	if len(s.Missing) > 0 {
		fmt.Fprintf(p.stderr, "warning: missing outputs %v\n", s.Missing)
	}
	if len(s.Extra) > 0 {
		fmt.Fprintf(p.stderr, "warning: undeclared outputs %v\n", s.Extra)
	}
}

func (p textPrinter) printKey(s keySummary) {
	fmt.Fprintf(p.stdout, "%s %s\n", s.Ref, s.Status)
	if s.Reason != "" {
		fmt.Fprintf(p.stderr, "warning: %s\n", s.Reason)
	}
}

type jsonPrinter struct{ stdout io.Writer }

func (p jsonPrinter) printResult(s runSummary) { p.encode(s) }

func (p jsonPrinter) printKey(s keySummary) { p.encode(s) }

func (p jsonPrinter) encode(v any) {
	enc := json.NewEncoder(p.stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
