package pinning

import "testing"

func mustParse(t *testing.T, rules []string) *Matcher {
	t.Helper()
	m, err := Parse(rules)
	if err != nil {
		t.Fatalf("Parse(%v): %v", rules, err)
	}
	return m
}

func TestExactAddressRule(t *testing.T) {
	m := mustParse(t, []string{"192.0.2.7"})
	if !m.IsPinned("192.0.2.7") {
		t.Error("exact match should pin")
	}
	if m.IsPinned("192.0.2.8") {
		t.Error("neighbor address should not pin")
	}
}

func TestCIDRRule(t *testing.T) {
	m := mustParse(t, []string{"10.0.0.0/8"})
	for _, in := range []string{"10.0.0.1", "10.255.255.254"} {
		if !m.IsPinned(in) {
			t.Errorf("%s inside 10.0.0.0/8 should pin", in)
		}
	}
	if m.IsPinned("11.0.0.1") {
		t.Error("address outside the prefix should not pin")
	}
}

func TestRangeRule(t *testing.T) {
	m := mustParse(t, []string{"10.0.0.5-10.0.0.9"})
	cases := []struct {
		addr string
		want bool
	}{
		{"10.0.0.5", true},
		{"10.0.0.7", true},
		{"10.0.0.9", true},
		{"10.0.0.4", false},
		{"10.0.0.10", false},
	}
	for _, c := range cases {
		if got := m.IsPinned(c.addr); got != c.want {
			t.Errorf("IsPinned(%s) = %v, want %v", c.addr, got, c.want)
		}
	}
}

func TestPortRuleLearnsAddresses(t *testing.T) {
	m := mustParse(t, []string{"port:443"})
	if m.IsPinned("203.0.113.9") {
		t.Fatal("port rule must not pin anything before an observation")
	}

	m.ObservePort("203.0.113.9", 80)
	if m.IsPinned("203.0.113.9") {
		t.Error("non-matching port must not pin")
	}

	m.ObservePort("203.0.113.9", 443)
	if !m.IsPinned("203.0.113.9") {
		t.Error("address observed on a pinned port should stay pinned")
	}
}

func TestNonAddressIDOnlyPinsViaPortRule(t *testing.T) {
	m := mustParse(t, []string{"10.0.0.0/8", "port:22"})
	if m.IsPinned("internal-gateway") {
		t.Error("address rules must not match a non-address id")
	}
	m.ObservePort("internal-gateway", 22)
	if !m.IsPinned("internal-gateway") {
		t.Error("port rules apply to any node id")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	bad := [][]string{
		{"not-an-ip"},
		{"10.0.0.0/40"},
		{"10.0.0.9-10.0.0.5"},
		{"port:0"},
		{"port:70000"},
		{"port:https"},
	}
	for _, rules := range bad {
		if _, err := Parse(rules); err == nil {
			t.Errorf("Parse(%v) should fail", rules)
		}
	}
}

func TestEmptyAndBlankRules(t *testing.T) {
	m := mustParse(t, []string{"", "  "})
	if !m.Empty() {
		t.Error("blank rules should compile to an empty matcher")
	}
	var nilM *Matcher
	if nilM.IsPinned("10.0.0.1") {
		t.Error("nil matcher pins nothing")
	}
}

func TestIPv6Rules(t *testing.T) {
	m := mustParse(t, []string{"2001:db8::/32"})
	if !m.IsPinned("2001:db8::1") {
		t.Error("v6 prefix should pin an address inside it")
	}
	if m.IsPinned("2001:db9::1") {
		t.Error("v6 address outside the prefix should not pin")
	}
}
