package admission

import "testing"

func TestPolicyAllowsUnderLimit(t *testing.T) {
	p, err := NewPolicy("under-limit", "ctx['started'] - ctx['ended'] < ctx['limit']")
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	allowed, err := p.Allow(Context{Source: "orders", Started: 1, Ended: 0, Limit: 2})
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !allowed {
		t.Fatalf("expected allowed, got rejected")
	}
}

func TestPolicyRejectsOverLimit(t *testing.T) {
	p, err := NewPolicy("under-limit", "ctx['started'] - ctx['ended'] < ctx['limit']")
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	allowed, err := p.Allow(Context{Source: "orders", Started: 2, Ended: 0, Limit: 2})
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allowed {
		t.Fatalf("expected rejected, got allowed")
	}
}

func TestPolicyRejectsNonPersistentWriters(t *testing.T) {
	p, err := NewPolicy("writers-must-persist", "!ctx['writable'] || ctx['requires_persistence']")
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	allowed, err := p.Allow(Context{Source: "orders", Writable: true, RequiresPersistence: false})
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allowed {
		t.Fatalf("expected rejected for a non-persistent writable source")
	}
}

func TestNewPolicyRejectsEmptyFields(t *testing.T) {
	if _, err := NewPolicy("", "true"); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if _, err := NewPolicy("name", ""); err == nil {
		t.Fatalf("expected error for empty expression")
	}
}
