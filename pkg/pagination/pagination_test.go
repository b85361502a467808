package pagination

import "testing"

func TestNormalizeDefaults(t *testing.T) {
	p := Params{}.Normalize()
	if p.Page != 1 || p.PageSize != DefaultPageSize {
		t.Fatalf("unexpected defaults %+v", p)
	}
	p = Params{Page: 3, PageSize: 1000}.Normalize()
	if p.PageSize != MaxPageSize {
		t.Fatalf("expected page size cap, got %d", p.PageSize)
	}
}

func TestSlice(t *testing.T) {
	items := make([]int, 23)
	for i := range items {
		items[i] = i
	}

	got, page := Slice(items, Params{Page: 3})
	if len(got) != 3 || got[0] != 20 {
		t.Fatalf("unexpected third page %v", got)
	}
	if page.TotalPages != 3 || page.Total != 23 {
		t.Fatalf("unexpected page meta %+v", page)
	}

	got, page = Slice(items, Params{Page: 9})
	if len(got) != 0 {
		t.Fatalf("expected empty page past the end, got %v", got)
	}
	if page.Page != 9 {
		t.Fatalf("expected requested page echoed, got %d", page.Page)
	}
}

func TestDescribeEmpty(t *testing.T) {
	if page := (Params{}).Describe(0); page.TotalPages != 0 {
		t.Fatalf("expected zero pages, got %d", page.TotalPages)
	}
}
