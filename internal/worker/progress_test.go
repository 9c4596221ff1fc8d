package worker

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestProgress_Update(t *testing.T) {
	p := NewProgress(10, false)

	p.Update(5, 10, 0)

	if p.completed != 5 {
		t.Errorf("Expected completed=5, got %d", p.completed)
	}
	if p.total != 10 {
		t.Errorf("Expected total=10, got %d", p.total)
	}
}

func TestProgress_Print(t *testing.T) {
	var buf bytes.Buffer

	p := NewProgress(4, true)
	p.output = &buf

	p.Update(2, 4, 1)

	output := buf.String()

	if !strings.Contains(output, "█") {
		t.Error("Expected progress bar in output")
	}
	if !strings.Contains(output, "2/4 fields") {
		t.Errorf("Expected '2/4 fields' in output, got: %s", output)
	}
	if !strings.Contains(output, "(1 failed)") {
		t.Errorf("Expected '(1 failed)' in output, got: %s", output)
	}
	if strings.Contains(output, "done in") {
		t.Errorf("Did not expect completion marker, got: %s", output)
	}
}

func TestProgress_Done(t *testing.T) {
	var buf bytes.Buffer

	p := NewProgress(3, true)
	p.output = &buf
	p.Update(3, 3, 0)
	p.Done()

	output := buf.String()
	if !strings.Contains(output, "done in") {
		t.Errorf("Expected completion marker, got: %s", output)
	}
	if !strings.HasSuffix(output, "\n") {
		t.Error("Expected trailing newline after Done")
	}
}

func TestProgress_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(0, true)
	p.output = &buf
	p.Print()
	if !strings.Contains(buf.String(), "0/0 fields") {
		t.Errorf("Expected '0/0 fields', got: %s", buf.String())
	}
}

func TestProgress_Summary(t *testing.T) {
	p := NewProgress(5, false)
	p.startTime = time.Now().Add(-2 * time.Second)
	p.Update(5, 5, 2)

	summary := p.Summary()
	if !strings.Contains(summary, "Generated 3/5 fields (2 failed)") {
		t.Errorf("Unexpected summary: %s", summary)
	}
}
