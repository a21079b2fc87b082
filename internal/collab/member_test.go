package collab

import "testing"

func TestGenerateMemberIdentityDrawsFromPalettes(t *testing.T) {
	colors := make(map[string]bool, len(memberColors))
	for _, color := range memberColors {
		colors[color] = true
	}
	emojis := make(map[string]bool, len(avatarEmojis))
	for _, emoji := range avatarEmojis {
		emojis[emoji] = true
	}

	for i := 0; i < 100; i++ {
		identity := GenerateMemberIdentity()
		if !colors[identity.Color] {
			t.Fatalf("color %q outside palette", identity.Color)
		}
		if !emojis[identity.AvatarEmoji] {
			t.Fatalf("emoji %q outside avatar set", identity.AvatarEmoji)
		}
	}
}

func TestNewMemberAssignsPermissionFromHostFlag(t *testing.T) {
	host := NewMember("m-1", "  Alice  ", MemberIdentity{Color: "#ef4444", AvatarEmoji: "🦊"}, true, 1234)
	if host.Permission != PermissionHost {
		t.Fatalf("expected host permission, got %q", host.Permission)
	}
	if host.Name != "Alice" {
		t.Fatalf("expected trimmed name, got %q", host.Name)
	}
	if !host.IsHost {
		t.Fatalf("expected host flag")
	}
	if host.Cursor != nil {
		t.Fatalf("expected nil cursor at creation")
	}

	editor := NewMember("m-2", "Bob", MemberIdentity{}, false, 1234)
	if editor.Permission != PermissionEditor {
		t.Fatalf("expected editor permission, got %q", editor.Permission)
	}
}
