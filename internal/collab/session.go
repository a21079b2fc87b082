package collab

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

const (
	// SessionCodeLength is the fixed length of a rendezvous code.
	SessionCodeLength = 6
	// sessionCodeAlphabet excludes visually ambiguous glyphs (O/0/I/1).
	sessionCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// ErrInvalidSessionCode indicates a code with the wrong length or alphabet.
var ErrInvalidSessionCode = errors.New("collab: invalid session code")

// GenerateSessionCode returns a 6-character code uniformly sampled from the
// 32-symbol alphabet. There is no collision check against live sessions;
// collision probability is accepted as negligible for small-scale,
// short-lived usage.
func GenerateSessionCode() string {
	code := make([]byte, SessionCodeLength)
	for i := range code {
		code[i] = sessionCodeAlphabet[rand.IntN(len(sessionCodeAlphabet))]
	}
	return string(code)
}

// NormalizeSessionCode uppercases and validates raw user input. Matching is
// case-insensitive at the join boundary.
func NormalizeSessionCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != SessionCodeLength {
		return "", fmt.Errorf("%w: expected %d characters", ErrInvalidSessionCode, SessionCodeLength)
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(sessionCodeAlphabet, rune(code[i])) {
			return "", fmt.Errorf("%w: disallowed character %q", ErrInvalidSessionCode, code[i])
		}
	}
	return code, nil
}

// ChatMessage is immutable once created. Ordering is by arrival, not by
// timestamp; no clock sync is assumed between participants.
type ChatMessage struct {
	ID              string `json:"id"`
	MemberID        string `json:"memberId"`
	MemberName      string `json:"memberName"`
	MemberColor     string `json:"memberColor"`
	Text            string `json:"text"`
	TimestampMillis int64  `json:"timestamp"`
}

// Session is a named, code-addressed collaboration group. Members are kept
// in join order. Exactly one member carries IsHost and HostID references it.
type Session struct {
	ID              string        `json:"id"`
	Code            string        `json:"code"`
	Name            string        `json:"name"`
	HostID          string        `json:"hostId"`
	Members         []Member      `json:"members"`
	Messages        []ChatMessage `json:"messages"`
	CreatedAtMillis int64         `json:"createdAt"`
}

// NewSession constructs a session with the creator as its single host member.
func NewSession(code, name string, host Member, nowMillis int64) *Session {
	return &Session{
		ID:              "session-" + code,
		Code:            code,
		Name:            name,
		HostID:          host.ID,
		Members:         []Member{host},
		Messages:        nil,
		CreatedAtMillis: nowMillis,
	}
}

// Member returns a pointer into the roster for the given member ID, or nil.
func (s *Session) Member(id string) *Member {
	for i := range s.Members {
		if s.Members[i].ID == id {
			return &s.Members[i]
		}
	}
	return nil
}

// AddMember appends the member unless the ID is already on the roster.
// It reports whether the roster changed.
func (s *Session) AddMember(member Member) bool {
	if s.Member(member.ID) != nil {
		return false
	}
	s.Members = append(s.Members, member)
	return true
}

// RemoveMember drops the member with the given ID from the roster and
// reports whether anything was removed.
func (s *Session) RemoveMember(id string) bool {
	for i := range s.Members {
		if s.Members[i].ID == id {
			s.Members = append(s.Members[:i], s.Members[i+1:]...)
			return true
		}
	}
	return false
}

// ReplaceMember swaps the roster record matching the member's ID wholesale
// and reports whether a match was found.
func (s *Session) ReplaceMember(member Member) bool {
	for i := range s.Members {
		if s.Members[i].ID == member.ID {
			s.Members[i] = member
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can hand out snapshots without
// exposing internal slices to concurrent mutation.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	copied := *s
	copied.Members = make([]Member, len(s.Members))
	copy(copied.Members, s.Members)
	for i := range copied.Members {
		if cursor := copied.Members[i].Cursor; cursor != nil {
			point := *cursor
			copied.Members[i].Cursor = &point
		}
	}
	copied.Messages = append([]ChatMessage(nil), s.Messages...)
	return &copied
}
