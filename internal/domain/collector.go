package domain

import (
	"bufio"
	"bytes"
	"log/slog"
	"strings"

	"faultline.dev/pkg/faultline/internal/adapter"
	m "faultline.dev/pkg/faultline/internal/model"
)

// maxProbeLine bounds one probe-log line; predicate ids carry source text.
const maxProbeLine = 1 << 20

// SpectrumCollector turns a raw probe log into spectra.
type SpectrumCollector interface {
	Collect(raw []byte, failing map[string]struct{}) m.Coverage
}

type spectrumCollector struct{}

// NewSpectrumCollector constructs a SpectrumCollector.
func NewSpectrumCollector() SpectrumCollector {
	return &spectrumCollector{}
}

type execution struct {
	test string
	seen map[m.SpectrumKey]struct{}
}

// Collect reads the log in one pass. Each execution's distinct probes are folded
// into the spectra when its end marker is read, so a probe firing repeatedly
// within one test execution counts once.
func (c *spectrumCollector) Collect(raw []byte, failing map[string]struct{}) m.Coverage {
	cov := m.Coverage{
		Spectra:     make(m.Spectra),
		OnlyFailing: make(map[m.SpectrumKey]struct{}),
	}

	open := make(map[string]*execution)

	fold := func(execID string) {
		exec, ok := open[execID]
		if !ok {
			return
		}

		delete(open, execID)

		_, failed := failing[exec.test]
		if failed {
			cov.TotalFailed++
		} else {
			cov.TotalPassed++
		}

		for key := range exec.seen {
			s := cov.Spectra[key]
			if failed {
				s.Failed++
			} else {
				s.Passed++
			}

			cov.Spectra[key] = s
		}
	}

	malformed := func(line string, reason string) {
		cov.Malformed++
		slog.Warn("malformed probe-log line", "reason", reason, "line", truncate(line, 120), "error", m.ErrMalformedInput)
	}

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), maxProbeLine)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		fields := strings.SplitN(line, "\t", 3)

		switch fields[0] {
		case adapter.MarkerTest:
			if len(fields) != 3 || fields[1] == "" || fields[2] == "" {
				malformed(line, "test marker")
				continue
			}

			open[fields[1]] = &execution{test: fields[2], seen: make(map[m.SpectrumKey]struct{})}

			continue
		case adapter.MarkerEnd:
			if len(fields) != 2 {
				malformed(line, "end marker")
				continue
			}

			fold(fields[1])

			continue
		}

		execID, probe, ok := strings.Cut(line, "\t")
		if !ok {
			malformed(line, "missing separator")
			continue
		}

		exec, known := open[execID]
		if !known {
			malformed(line, "probe outside a test execution")
			continue
		}

		loc, predicate, tag, err := ProbeID(probe)
		if err != nil {
			malformed(line, err.Error())
			continue
		}

		if tag == "0" {
			continue
		}

		exec.seen[m.SpectrumKey{Location: loc, Predicate: predicate}] = struct{}{}
	}

	if err := scanner.Err(); err != nil {
		malformed("", err.Error())
	}

	// Executions cut short (no end marker) still count.
	for execID := range open {
		fold(execID)
	}

	for key, s := range cov.Spectra {
		if s.OnlyFailing() {
			cov.OnlyFailing[key] = struct{}{}
		}
	}

	return cov
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
