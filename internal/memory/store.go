// Copyright 2026 The Promptwire Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package memory persists conversation history and rolling summaries per
// discussion id, backed by sqlite. It implements the workflow engine's
// memory collaborator contract; the engine itself holds no storage logic.
package memory

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/promptwire/promptwire/pkg/backend"
	"github.com/promptwire/promptwire/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	discussion_id TEXT    NOT NULL,
	turn_index    INTEGER NOT NULL,
	role          TEXT    NOT NULL,
	content       TEXT    NOT NULL,
	created_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_turns_discussion ON turns(discussion_id, turn_index);

CREATE TABLE IF NOT EXISTS summaries (
	discussion_id   TEXT PRIMARY KEY,
	summary         TEXT    NOT NULL,
	last_turn_index INTEGER NOT NULL,
	updated_at      TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// maxSearchResults caps how many matching turns a search returns; memory
// nodes feed results into prompts and unbounded hits would blow the
// context window.
const maxSearchResults = 20

// Summarizer condenses conversation turns into a rolling summary,
// typically by calling an LLM endpoint.
type Summarizer interface {
	Summarize(ctx context.Context, priorSummary string, turns []backend.Message) (string, error)
}

// Store is the sqlite-backed memory collaborator. Writes to the same
// discussion serialize on a per-id mutex; unrelated discussions never
// contend.
type Store struct {
	db         *sql.DB
	summarizer Summarizer
	logger     *slog.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Open creates or opens the store at path. Use ":memory:" for tests.
func Open(path string, summarizer Summarizer, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, &errors.ConfigError{
			Key:    "memory.path",
			Reason: "database path is required",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening memory database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing memory schema")
	}

	return &Store{
		db:         db,
		summarizer: summarizer,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// lockFor returns the write mutex for one discussion id.
func (s *Store) lockFor(discussionID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	mu, ok := s.locks[discussionID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[discussionID] = mu
	}
	return mu
}

// AppendAndSummarize stores the turns of the conversation that are not yet
// persisted, refreshes the rolling summary over them, and returns the new
// summary. The caller passes the full conversation; already-stored turns
// are recognized by position and skipped. Without a summarizer the new
// turns are stored and the existing summary is returned unchanged.
func (s *Store) AppendAndSummarize(ctx context.Context, discussionID string, turns []backend.Message) (string, error) {
	mu := s.lockFor(discussionID)
	mu.Lock()
	defer mu.Unlock()

	stored, err := s.turnCount(ctx, discussionID)
	if err != nil {
		return "", err
	}

	var newTurns []backend.Message
	if stored < len(turns) {
		newTurns = turns[stored:]
	}

	for i, turn := range newTurns {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO turns (discussion_id, turn_index, role, content) VALUES (?, ?, ?, ?)`,
			discussionID, stored+i, string(turn.Role), turn.Content,
		)
		if err != nil {
			return "", errors.Wrap(err, "storing turn")
		}
	}

	prior, err := s.summary(ctx, discussionID)
	if err != nil {
		return "", err
	}

	if s.summarizer == nil || len(newTurns) == 0 {
		return prior, nil
	}

	summary, err := s.summarizer.Summarize(ctx, prior, newTurns)
	if err != nil {
		return "", errors.Wrap(err, "summarizing conversation")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO summaries (discussion_id, summary, last_turn_index)
		 VALUES (?, ?, ?)
		 ON CONFLICT(discussion_id) DO UPDATE SET
		   summary = excluded.summary,
		   last_turn_index = excluded.last_turn_index,
		   updated_at = CURRENT_TIMESTAMP`,
		discussionID, summary, stored+len(newTurns)-1,
	)
	if err != nil {
		return "", errors.Wrap(err, "storing summary")
	}

	s.logger.Debug("memory updated",
		"discussion_id", discussionID,
		"new_turns", len(newTurns),
		"summary_len", len(summary),
	)
	return summary, nil
}

// CurrentSummary returns the stored summary for a discussion, or "" when
// none exists yet.
func (s *Store) CurrentSummary(ctx context.Context, discussionID string) (string, error) {
	return s.summary(ctx, discussionID)
}

// KeywordSearch returns history turns containing any of the keywords,
// case-insensitively, starting no earlier than lookbackStartTurn. No hits
// is "", not an error.
func (s *Store) KeywordSearch(ctx context.Context, discussionID, keywords string, lookbackStartTurn int) (string, error) {
	terms := splitKeywords(keywords)
	if len(terms) == 0 {
		return "", nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM turns
		 WHERE discussion_id = ? AND turn_index >= ?
		 ORDER BY turn_index`,
		discussionID, lookbackStartTurn,
	)
	if err != nil {
		return "", errors.Wrap(err, "querying history")
	}
	defer rows.Close()

	var hits []string
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return "", errors.Wrap(err, "scanning turn")
		}
		if containsAny(content, terms) {
			hits = append(hits, role+": "+content)
			if len(hits) >= maxSearchResults {
				break
			}
		}
	}
	if err := rows.Err(); err != nil {
		return "", errors.Wrap(err, "reading history")
	}

	return strings.Join(hits, "\n"), nil
}

// RAGSearch scores history turns by term overlap with the query and
// returns the best matches, most relevant first.
func (s *Store) RAGSearch(ctx context.Context, discussionID, query string) (string, error) {
	terms := splitKeywords(query)
	if len(terms) == 0 {
		return "", nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM turns WHERE discussion_id = ? ORDER BY turn_index`,
		discussionID,
	)
	if err != nil {
		return "", errors.Wrap(err, "querying history")
	}
	defer rows.Close()

	type scored struct {
		line  string
		score int
	}
	var candidates []scored

	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return "", errors.Wrap(err, "scanning turn")
		}
		score := overlapScore(content, terms)
		if score > 0 {
			candidates = append(candidates, scored{line: role + ": " + content, score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return "", errors.Wrap(err, "reading history")
	}

	// Stable selection: best score first, earlier turns win ties.
	const limit = 5
	var out []string
	for len(out) < limit && len(candidates) > 0 {
		best := 0
		for i, c := range candidates {
			if c.score > candidates[best].score {
				best = i
			}
		}
		out = append(out, candidates[best].line)
		candidates = append(candidates[:best], candidates[best+1:]...)
	}

	return strings.Join(out, "\n"), nil
}

// turnCount returns the number of stored turns for a discussion.
func (s *Store) turnCount(ctx context.Context, discussionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM turns WHERE discussion_id = ?`, discussionID,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "counting turns")
	}
	return count, nil
}

// summary reads the stored summary, mapping "no row" to "".
func (s *Store) summary(ctx context.Context, discussionID string) (string, error) {
	var summary string
	err := s.db.QueryRowContext(ctx,
		`SELECT summary FROM summaries WHERE discussion_id = ?`, discussionID,
	).Scan(&summary)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "reading summary")
	}
	return summary, nil
}

// splitKeywords tokenizes a keyword field on commas and whitespace.
func splitKeywords(keywords string) []string {
	fields := strings.FieldsFunc(keywords, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			terms = append(terms, strings.ToLower(f))
		}
	}
	return terms
}

func containsAny(content string, terms []string) bool {
	lower := strings.ToLower(content)
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func overlapScore(content string, terms []string) int {
	lower := strings.ToLower(content)
	score := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			score++
		}
	}
	return score
}
