package collab

import (
	"strings"
	"testing"
)

func TestGenerateSessionCodeShape(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := GenerateSessionCode()
		if len(code) != SessionCodeLength {
			t.Fatalf("expected %d characters, got %q", SessionCodeLength, code)
		}
		for _, r := range code {
			if !strings.ContainsRune(sessionCodeAlphabet, r) {
				t.Fatalf("character %q outside alphabet in code %q", r, code)
			}
		}
		for _, forbidden := range "O0I1" {
			if strings.ContainsRune(code, forbidden) {
				t.Fatalf("ambiguous glyph %q in code %q", forbidden, code)
			}
		}
	}
}

func TestNormalizeSessionCodeUppercases(t *testing.T) {
	code, err := NormalizeSessionCode("  abc234 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "ABC234" {
		t.Fatalf("expected ABC234, got %q", code)
	}
}

func TestNormalizeSessionCodeRejectsBadInput(t *testing.T) {
	cases := []string{"", "ABC23", "ABC2345", "ABC2O4", "ABC2I4", "AB-234"}
	for _, raw := range cases {
		if _, err := NormalizeSessionCode(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestSessionAddMemberDeduplicatesByID(t *testing.T) {
	host := NewMember("m-1", "Alice", MemberIdentity{Color: "#ef4444", AvatarEmoji: "🦊"}, true, 1000)
	session := NewSession("ABC234", "Team", host, 1000)

	joiner := NewMember("m-2", "Bob", MemberIdentity{Color: "#3b82f6", AvatarEmoji: "🐙"}, false, 2000)
	if !session.AddMember(joiner) {
		t.Fatalf("expected first add to change the roster")
	}
	if session.AddMember(joiner) {
		t.Fatalf("expected duplicate add to be rejected")
	}
	if len(session.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(session.Members))
	}
	if session.Members[0].ID != "m-1" || session.Members[1].ID != "m-2" {
		t.Fatalf("expected join order to be preserved")
	}
}

func TestSessionRemoveMember(t *testing.T) {
	host := NewMember("m-1", "Alice", MemberIdentity{}, true, 1000)
	session := NewSession("ABC234", "Team", host, 1000)
	session.AddMember(NewMember("m-2", "Bob", MemberIdentity{}, false, 2000))

	if !session.RemoveMember("m-2") {
		t.Fatalf("expected removal of known member")
	}
	if session.RemoveMember("m-2") {
		t.Fatalf("expected second removal to report no change")
	}
	if len(session.Members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(session.Members))
	}
}

func TestSessionReplaceMemberWholesale(t *testing.T) {
	host := NewMember("m-1", "Alice", MemberIdentity{}, true, 1000)
	session := NewSession("ABC234", "Team", host, 1000)
	member := NewMember("m-2", "Bob", MemberIdentity{}, false, 2000)
	session.AddMember(member)

	member.Permission = PermissionViewer
	member.Name = "Robert"
	if !session.ReplaceMember(member) {
		t.Fatalf("expected replacement of known member")
	}
	replaced := session.Member("m-2")
	if replaced.Permission != PermissionViewer || replaced.Name != "Robert" {
		t.Fatalf("expected wholesale replacement, got %+v", replaced)
	}

	if session.ReplaceMember(NewMember("m-9", "Ghost", MemberIdentity{}, false, 0)) {
		t.Fatalf("expected replacement of unknown member to report no change")
	}
}

func TestSessionHostInvariant(t *testing.T) {
	host := NewMember("m-1", "Alice", MemberIdentity{}, true, 1000)
	session := NewSession("ABC234", "Team", host, 1000)
	session.AddMember(NewMember("m-2", "Bob", MemberIdentity{}, false, 2000))

	hosts := 0
	for _, member := range session.Members {
		if member.IsHost {
			hosts++
		}
	}
	if hosts != 1 {
		t.Fatalf("expected exactly one host, got %d", hosts)
	}
	if session.HostID != "m-1" {
		t.Fatalf("expected host id m-1, got %q", session.HostID)
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	host := NewMember("m-1", "Alice", MemberIdentity{}, true, 1000)
	host.Cursor = &Point{X: 5, Y: 7}
	session := NewSession("ABC234", "Team", host, 1000)
	session.Messages = append(session.Messages, ChatMessage{ID: "msg-1", Text: "hi"})

	clone := session.Clone()
	clone.Members[0].Name = "Changed"
	clone.Members[0].Cursor.X = 99
	clone.Messages[0].Text = "changed"

	if session.Members[0].Name != "Alice" {
		t.Fatalf("clone mutation leaked into member name")
	}
	if session.Members[0].Cursor.X != 5 {
		t.Fatalf("clone mutation leaked into cursor")
	}
	if session.Messages[0].Text != "hi" {
		t.Fatalf("clone mutation leaked into messages")
	}
}
