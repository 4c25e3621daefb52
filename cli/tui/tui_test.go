package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/vpd/api"
	"github.com/pithecene-io/vpd/lode"
	"github.com/pithecene-io/vpd/manager"
	"github.com/pithecene-io/vpd/types"
)

func TestIsTUISupported(t *testing.T) {
	tests := []struct {
		viewType string
		want     bool
	}{
		{ViewStatus, true},
		{ViewFaults, true},
		{"read", false},
		{"write", false},
		{"hw-path", false},
		{"version", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.viewType, func(t *testing.T) {
			if got := IsTUISupported(tt.viewType); got != tt.want {
				t.Errorf("IsTUISupported(%q) = %v, want %v", tt.viewType, got, tt.want)
			}
		})
	}
}

func TestRun_UnsupportedViewType(t *testing.T) {
	if err := Run("read", nil); err == nil {
		t.Error("expected error for unsupported view type")
	}
}

func sampleStatus() api.StatusResponse {
	return api.StatusResponse{
		SystemCollectionComplete: true,
		Frus: []manager.FruStatus{
			{Path: "/xyz/openbmc_project/inventory/system/chassis/motherboard", HwPath: "/sys/bus/i2c/drivers/at24/8-0050/eeprom", Status: types.CollectionCompleted, Present: true, SystemVPD: true},
			{Path: "/xyz/openbmc_project/inventory/system/chassis/motherboard/fan0", HwPath: "/sys/bus/i2c/drivers/at24/7-0051/eeprom", Status: types.CollectionFailed, ConcurrentlyMaintainable: true, ReplaceableAtStandby: true},
		},
	}
}

func TestRenderStatic_Status(t *testing.T) {
	for _, data := range []any{sampleStatus(), ptr(sampleStatus())} {
		out := RenderStatic(ViewStatus, data)
		for _, want := range []string{"VPD Collection", "complete", "motherboard/fan0", "Failed", "SP--", "--CR"} {
			if !strings.Contains(out, want) {
				t.Errorf("status view missing %q:\n%s", want, out)
			}
		}
	}
}

func TestRenderStatic_Faults(t *testing.T) {
	faults := []lode.ArchivedFault{
		{FaultRecord: types.FaultRecord{ID: "a", ErrorType: "ReadFailure", Severity: "Error", Callouts: []types.CalloutEntry{{Kind: types.CalloutInventory, Path: "/inv/fan0"}}}},
		{FaultRecord: types.FaultRecord{ID: "b", ErrorType: "WriteFailure", Severity: "Warning"}},
	}
	out := RenderStatic(ViewFaults, faults)
	for _, want := range []string{"Archived Faults", "ReadFailure", "WriteFailure", "/inv/fan0"} {
		if !strings.Contains(out, want) {
			t.Errorf("faults view missing %q:\n%s", want, out)
		}
	}
}

func TestRenderStatic_WrongData(t *testing.T) {
	if out := RenderStatic(ViewStatus, "nope"); !strings.Contains(out, "Invalid data type") {
		t.Errorf("out = %q", out)
	}
}

func TestModel_ScrollAndQuit(t *testing.T) {
	var m tea.Model = NewModel(ViewStatus, sampleStatus())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := m.(Model).offset; got != 1 {
		t.Fatalf("offset after down = %d, want 1", got)
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := m.(Model).offset; got != 1 {
		t.Fatalf("offset clamps at last row, got %d", got)
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if got := m.(Model).offset; got != 0 {
		t.Fatalf("offset after up = %d, want 0", got)
	}

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("quit key should return a command")
	}
	if m.View() != "" {
		t.Error("view should be empty after quit")
	}
}

func TestStateStyle(t *testing.T) {
	if StateStyle("Completed").GetForeground() != successColor {
		t.Error("Completed should use the success color")
	}
	if StateStyle("Failed").GetForeground() != errorColor {
		t.Error("Failed should use the error color")
	}
	if StateStyle("InProgress").GetForeground() != warningColor {
		t.Error("InProgress should use the warning color")
	}
}

func ptr[T any](v T) *T { return &v }
