package search

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Token prefixes distinguish the two pagination strategies on decode.
const (
	standardTokenPrefix = "gst1."
	cursorTokenPrefix   = "gsc1."
)

// ErrInvalidToken is returned when a continuation token cannot be decoded.
// Callers treat it as "start a fresh search" rather than failing the call.
var ErrInvalidToken = errors.New("invalid continuation token")

// ContinuationToken carries the cross-backend pagination state between
// requests in the standard strategy.
type ContinuationToken struct {
	// Query identity; a token is only valid for the query that minted it.
	Terms      []string `json:"terms,omitempty"`
	TypeFilter string   `json:"type_filter,omitempty"`

	// Page is the 1-based page number the token resumes after.
	Page int `json:"page"`

	// BackendCursors holds each backend's native cursor keyed by name.
	// A missing key means the backend is exhausted.
	BackendCursors map[string]string `json:"backend_cursors,omitempty"`

	// ScoreFloor is the lowest score emitted so far; later pages skip
	// results that would have sorted above it (best-effort ordering).
	ScoreFloor float64 `json:"score_floor"`

	// BufferSize is the per-backend fetch size used for the prior page,
	// grown when the prior page reported a buffer overflow.
	BufferSize int `json:"buffer_size"`

	// Overflow records whether the prior page had more candidates than
	// its buffer could hold.
	Overflow bool `json:"overflow"`

	// EmittedTail lists the result paths at the floor score already
	// returned, so ties at the floor are not repeated.
	EmittedTail []string `json:"emitted_tail,omitempty"`

	// CarryStateID keys the server-side stash of ranked results that did
	// not fit on the prior page. Empty when nothing was carried; an
	// expired stash is silently dropped from the walk.
	CarryStateID string `json:"carry_state_id,omitempty"`
}

// cursorToken is the wire shape of the cursor strategy: all state lives in
// the pagination cache server-side, the token only carries its key.
type cursorToken struct {
	StateID string `json:"state_id"`
}

// EncodeToken serializes a standard continuation token.
func EncodeToken(tok ContinuationToken) (string, error) {
	raw, err := json.Marshal(tok)
	if err != nil {
		return "", fmt.Errorf("encode continuation token: %w", err)
	}
	return standardTokenPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeToken parses a standard continuation token.
func DecodeToken(s string) (ContinuationToken, error) {
	var tok ContinuationToken
	payload, ok := strings.CutPrefix(s, standardTokenPrefix)
	if !ok {
		return tok, fmt.Errorf("%w: missing prefix", ErrInvalidToken)
	}
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return tok, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := json.Unmarshal(raw, &tok); err != nil {
		return tok, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if tok.Page < 1 {
		return ContinuationToken{}, fmt.Errorf("%w: page out of range", ErrInvalidToken)
	}
	return tok, nil
}

// EncodeCursorToken serializes a cursor-strategy token around a state ID.
func EncodeCursorToken(stateID string) (string, error) {
	raw, err := json.Marshal(cursorToken{StateID: stateID})
	if err != nil {
		return "", fmt.Errorf("encode cursor token: %w", err)
	}
	return cursorTokenPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCursorToken parses a cursor-strategy token and returns the state ID.
func DecodeCursorToken(s string) (string, error) {
	payload, ok := strings.CutPrefix(s, cursorTokenPrefix)
	if !ok {
		return "", fmt.Errorf("%w: missing prefix", ErrInvalidToken)
	}
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var tok cursorToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if tok.StateID == "" {
		return "", fmt.Errorf("%w: empty state id", ErrInvalidToken)
	}
	return tok.StateID, nil
}

// IsCursorToken reports which strategy a token belongs to without decoding
// its payload.
func IsCursorToken(s string) bool {
	return strings.HasPrefix(s, cursorTokenPrefix)
}
