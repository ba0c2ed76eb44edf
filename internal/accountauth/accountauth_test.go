package accountauth

import "testing"

func TestHashAndVerifyPasswordRoundTrip(t *testing.T) {
	hash, salt, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	ok, err := VerifyPassword("correct horse battery staple", hash, salt)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Fatal("expected the correct password to verify")
	}

	ok, err = VerifyPassword("wrong password", hash, salt)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Fatal("expected an incorrect password not to verify")
	}
}

func TestValidUsername(t *testing.T) {
	cases := map[string]bool{
		"tam":                   true,
		"Tam_42":                true,
		"ab":                    false, // too short
		"this_username_is_way_too_long_for_the_rule": false,
		"has space":    false,
		"has-dash":     false,
		"has.dot":      false,
		"unicode_é":    false,
	}
	for u, want := range cases {
		if got := ValidUsername(u); got != want {
			t.Errorf("ValidUsername(%q) = %v, want %v", u, got, want)
		}
	}
}

func TestValidPassword(t *testing.T) {
	cases := map[string]bool{
		"short":                                    false, // < 8 chars
		"exactly8":                                 true,
		"has a space in it":                        true,
		"has!punct$and%symbols^":                   true,
		"has\nnewline_but_long_enough_to_pass_len": false,
		"this password is exactly forty one chars!": false, // 41 chars, over the cap
	}
	for p, want := range cases {
		if got := ValidPassword(p); got != want {
			t.Errorf("ValidPassword(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestSignerIssueAndVerifyRoundTrip(t *testing.T) {
	s := NewSignerFromKey([]byte("0123456789abcdef0123456789abcdef"))
	cookie := s.Issue(42, "tam")

	id, username, ok := s.Verify(cookie)
	if !ok {
		t.Fatal("expected a freshly issued cookie to verify")
	}
	if id != 42 || username != "tam" {
		t.Errorf("Verify = %d, %q, want 42, \"tam\"", id, username)
	}
}

func TestSignerVerifyRejectsTamperedCookie(t *testing.T) {
	s := NewSignerFromKey([]byte("0123456789abcdef0123456789abcdef"))
	cookie := s.Issue(42, "tam")

	other := NewSignerFromKey([]byte("different-key-different-key-0000"))
	if _, _, ok := other.Verify(cookie); ok {
		t.Fatal("expected a cookie signed with a different key to fail verification")
	}
	if _, _, ok := s.Verify(cookie + "x"); ok {
		t.Fatal("expected a corrupted cookie to fail verification")
	}
	if _, _, ok := s.Verify("not even base64!!"); ok {
		t.Fatal("expected garbage input to fail verification, not panic")
	}
}
