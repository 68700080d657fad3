// Package training collects gameplay experience for offline policy work. The
// replay buffer keeps a bounded window of per-decision records and persists
// them as JSONL.
package training

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	rand "math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/lox/holdemtable/internal/ai"
	"github.com/lox/holdemtable/internal/fileutil"
	"github.com/lox/holdemtable/internal/game"
)

// Experience is one recorded decision: who acted, from which bucketed
// infoset, and what they did. Outcome is filled in by offline processing,
// not at capture time.
type Experience struct {
	Timestamp   float64  `json:"timestamp"`
	SessionID   string   `json:"session_id,omitempty"`
	Street      string   `json:"street"`
	PlayerToAct string   `json:"player_to_act"`
	InfosetID   string   `json:"infoset_id"`
	ActionTaken string   `json:"action_taken"`
	Amount      int      `json:"amount"`
	Outcome     *float64 `json:"outcome"`
}

// NewExperience builds a record for an action just taken.
func NewExperience(sessionID, seat, infosetID string, street game.Street, action game.Action) Experience {
	return Experience{
		Timestamp:   float64(time.Now().UnixNano()) / float64(time.Second),
		SessionID:   sessionID,
		Street:      street.String(),
		PlayerToAct: seat,
		InfosetID:   infosetID,
		ActionTaken: action.Kind.String(),
		Amount:      action.Amount,
	}
}

// Buffer is a bounded experience store. Once full, the oldest records are
// evicted. Safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	entries  []Experience
	start    int
	size     int
	rng      *rand.Rand
}

// NewBuffer creates a buffer holding at most capacity records.
func NewBuffer(capacity int, rng *rand.Rand) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d", capacity)
	}
	return &Buffer{
		capacity: capacity,
		entries:  make([]Experience, capacity),
		rng:      rng,
	}, nil
}

// Capacity returns the maximum record count.
func (b *Buffer) Capacity() int { return b.capacity }

// Len returns the current record count.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Add appends a record, evicting the oldest when full.
func (b *Buffer) Add(exp Experience) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size < b.capacity {
		b.entries[(b.start+b.size)%b.capacity] = exp
		b.size++
		return
	}
	b.entries[b.start] = exp
	b.start = (b.start + 1) % b.capacity
}

// Sample returns up to n records drawn without replacement.
func (b *Buffer) Sample(n int) ([]Experience, error) {
	if n <= 0 {
		return nil, fmt.Errorf("sample size must be positive, got %d", n)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == 0 {
		return nil, nil
	}

	indices := b.rng.Perm(b.size)
	if n > b.size {
		n = b.size
	}
	out := make([]Experience, n)
	for i := 0; i < n; i++ {
		out[i] = b.entries[(b.start+indices[i])%b.capacity]
	}
	return out, nil
}

// Save writes the buffer as JSONL, oldest record first.
func (b *Buffer) Save(path string) error {
	b.mu.Lock()
	snapshot := make([]Experience, b.size)
	for i := 0; i < b.size; i++ {
		snapshot[i] = b.entries[(b.start+i)%b.capacity]
	}
	b.mu.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, exp := range snapshot {
		if err := enc.Encode(exp); err != nil {
			return fmt.Errorf("encoding experience: %w", err)
		}
	}
	return fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// Load reads a JSONL file into a new buffer. A zero capacity sizes the
// buffer to the file's record count; otherwise only the newest capacity
// records are kept.
func Load(path string, capacity int, rng *rand.Rand) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening replay file: %w", err)
	}
	defer f.Close()

	var entries []Experience
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var exp Experience
		if err := json.Unmarshal(line, &exp); err != nil {
			return nil, fmt.Errorf("parsing replay line: %w", err)
		}
		entries = append(entries, exp)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading replay file: %w", err)
	}

	if capacity <= 0 {
		capacity = len(entries)
		if capacity == 0 {
			capacity = 1
		}
	}
	buffer, err := NewBuffer(capacity, rng)
	if err != nil {
		return nil, err
	}
	if len(entries) > capacity {
		entries = entries[len(entries)-capacity:]
	}
	for _, exp := range entries {
		buffer.Add(exp)
	}
	return buffer, nil
}

// Record captures the acting seat's decision into the buffer, computing the
// bucketed infoset from the pre-action observation. A nil buffer is a no-op.
func Record(buffer *Buffer, sessionID, seat string, action game.Action, street game.Street, e *game.Engine) {
	if buffer == nil {
		return
	}
	b := e.Betting
	history := b.History
	if len(history) > 0 {
		// The action being recorded is already appended; bucket on the
		// history the actor saw.
		history = history[:len(history)-1]
	}
	infosetID := ai.ComputeInfosetID(seat, e.HoleCards(seat), e.Board(), street, history, b.Pot, b.Stacks[seat], b.BigBlind)
	buffer.Add(NewExperience(sessionID, seat, infosetID, street, action))
}
