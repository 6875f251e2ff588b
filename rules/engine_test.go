package rules

import "testing"

func TestNoRuleAllowsByDefault(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatal(err)
	}
	ok, err := e.Allow("users", OpRead, nil, map[string]interface{}{})
	if err != nil || !ok {
		t.Fatalf("expected allow with no rule attached, ok=%v err=%v", ok, err)
	}
}

func TestRuleDeniesAndAllowsByAuth(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatal(err)
	}
	e.SetRule("users", OpUpdate, `request.auth.uid == resource.ownerId`)

	resource := map[string]interface{}{"ownerId": "u1"}

	ok, err := e.Allow("users", OpUpdate, &AuthContext{UID: "u1"}, resource)
	if err != nil || !ok {
		t.Fatalf("expected owner allowed, ok=%v err=%v", ok, err)
	}

	ok, err = e.Allow("users", OpUpdate, &AuthContext{UID: "u2"}, resource)
	if err != nil || ok {
		t.Fatalf("expected non-owner denied, ok=%v err=%v", ok, err)
	}
}

func TestClearingRuleRevertsToAllow(t *testing.T) {
	e, _ := New()
	e.SetRule("users", OpDelete, "false")
	if ok, _ := e.Allow("users", OpDelete, nil, nil); ok {
		t.Fatal("expected deny while rule is set")
	}
	e.SetRule("users", OpDelete, "")
	if ok, err := e.Allow("users", OpDelete, nil, nil); err != nil || !ok {
		t.Fatalf("expected allow after clearing rule, ok=%v err=%v", ok, err)
	}
}

func TestProgramCacheReusedAcrossCalls(t *testing.T) {
	e, _ := New()
	e.SetRule("users", OpRead, "true")
	for i := 0; i < 3; i++ {
		ok, err := e.Allow("users", OpRead, nil, nil)
		if err != nil || !ok {
			t.Fatalf("call %d: ok=%v err=%v", i, ok, err)
		}
	}
	if _, ok := e.prgCache.Load("true"); !ok {
		t.Error("expected compiled program to be absent for literal true/false shortcuts")
	}
}

func TestInvalidExpressionFailsCompile(t *testing.T) {
	e, _ := New()
	e.SetRule("users", OpRead, "this is not cel")
	if _, err := e.Allow("users", OpRead, nil, nil); err == nil {
		t.Fatal("expected compile error")
	}
}
