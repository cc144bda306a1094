package cli

import (
	"bytes"
	"testing"
)

func TestRunDoctorReportsMissingRegistrations(t *testing.T) {
	root := t.TempDir()
	t.Chdir(root)

	cmd := doctorCmd
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := runDoctor(cmd, nil); err == nil {
		t.Fatal("expected doctor to report problems on an empty workspace")
	}
	if !bytes.Contains(out.Bytes(), []byte("FAIL")) {
		t.Fatalf("output = %q, want a FAIL line", out.String())
	}
}

func TestPaneAliveByHandle(t *testing.T) {
	if alive, checked := paneAliveByHandle("not-a-pid"); checked || alive {
		t.Fatalf("non-numeric handle: alive=%v checked=%v, want false/false", alive, checked)
	}
	if alive, checked := paneAliveByHandle("1"); !checked || !alive {
		t.Fatalf("pid 1: alive=%v checked=%v, want true/true", alive, checked)
	}
	if alive, checked := paneAliveByHandle("999999999"); !checked || alive {
		t.Fatalf("bogus pid: alive=%v checked=%v, want false/true", alive, checked)
	}
}
