package querygen

import "testing"

func TestSanitizeInjectsLimitWhenMissing(t *testing.T) {
	got := Sanitize("MATCH (n:Customer) RETURN n", 25)
	if !contains(got, "LIMIT 25") {
		t.Fatalf("got %q, expected LIMIT 25 injected", got)
	}
}

func TestSanitizeLeavesExistingLimit(t *testing.T) {
	got := Sanitize("MATCH (n:Customer) RETURN n LIMIT 10", 25)
	if !contains(got, "LIMIT 10") || contains(got, "LIMIT 25") {
		t.Fatalf("got %q, expected existing LIMIT 10 preserved", got)
	}
}

func TestSanitizeRemovesWriteClause(t *testing.T) {
	got := Sanitize("MATCH (n:Customer) DELETE n RETURN n", 25)
	if contains(got, "DELETE") || contains(got, "delete") {
		t.Fatalf("got %q, expected DELETE removed", got)
	}
	if !contains(got, "MATCH") || !contains(got, "RETURN") {
		t.Fatalf("got %q, expected MATCH/RETURN preserved", got)
	}
}

func TestSanitizeRemovesSetClausePayload(t *testing.T) {
	got := Sanitize("MATCH (n:Customer) SET n.flag = true RETURN n", 25)
	if contains(got, "SET") || contains(got, "flag") {
		t.Fatalf("got %q, expected SET clause and its payload removed", got)
	}
}

func TestSanitizeInjectsLimitAfterOrderBy(t *testing.T) {
	got := Sanitize("MATCH (n:Customer) RETURN n ORDER BY n.name", 25)
	orderIdx := indexOf(got, "ORDER BY")
	limitIdx := indexOf(got, "LIMIT 25")
	if orderIdx == -1 || limitIdx == -1 || limitIdx < orderIdx {
		t.Fatalf("got %q, expected LIMIT 25 to follow ORDER BY", got)
	}
}

func TestSanitizeInjectsLimitAfterOrderByAndSkip(t *testing.T) {
	got := Sanitize("MATCH (n:Customer) RETURN n ORDER BY n.name SKIP 5", 25)
	skipIdx := indexOf(got, "SKIP 5")
	limitIdx := indexOf(got, "LIMIT 25")
	if skipIdx == -1 || limitIdx == -1 || limitIdx < skipIdx {
		t.Fatalf("got %q, expected LIMIT 25 to follow SKIP 5", got)
	}
}

func TestValidateAfterSanitizeIsReadOnlyAndLimited(t *testing.T) {
	raw := "MATCH (n:Customer) DELETE n RETURN n"
	sanitized := Sanitize(raw, 25)
	v := Validate(sanitized, ValidateOptions{MaxComplexity: 20})
	if !v.Valid || !v.IsReadOnly {
		t.Fatalf("sanitized query should validate read-only, got valid=%v readonly=%v errors=%v", v.Valid, v.IsReadOnly, v.Errors)
	}
}
