package enums

import "testing"

func TestParseOrderStatus(t *testing.T) {
	for _, raw := range []string{"nuovo", "letto", "in_preparazione", "pronto"} {
		status, err := ParseOrderStatus(raw)
		if err != nil || string(status) != raw {
			t.Fatalf("expected %q to parse, got %q err=%v", raw, status, err)
		}
	}
	if _, err := ParseOrderStatus("spedito"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
	if OrderStatusRead.IsOperatorSettable() {
		t.Fatal("letto must not be operator settable")
	}
	if !OrderStatusReady.IsOperatorSettable() {
		t.Fatal("pronto must be operator settable")
	}
}

func TestDisplayDepartmentsExcludeHardwareAndCylinders(t *testing.T) {
	got := DisplayDepartments()
	if len(got) != 4 {
		t.Fatalf("expected 4 display departments, got %v", got)
	}
	for _, d := range got {
		if d == DepartmentHardware || d == DepartmentCylinders {
			t.Fatalf("unexpected department %s on display", d)
		}
	}
}

func TestParseDepartmentNormalizes(t *testing.T) {
	d, err := ParseDepartment(" rep03 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != DepartmentBeams || d.Label() != "TRAVI" {
		t.Fatalf("unexpected department %s (%s)", d, d.Label())
	}
	if _, err := ParseDepartment("REP99"); err == nil {
		t.Fatal("expected unknown department to fail")
	}
}

func TestParseOperatorRoleLegacyCashier(t *testing.T) {
	role, err := ParseOperatorRole("cassiere")
	if err != nil || role != OperatorRoleCashier {
		t.Fatalf("expected cashier, got %q err=%v", role, err)
	}
}
