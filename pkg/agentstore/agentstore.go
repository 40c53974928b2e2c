// Package agentstore persists the catalog of provisioned agents and the
// pointer to the currently active one. Records survive restarts so an agent
// provisioned once is reused instead of recreated.
package agentstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/voicebridge/voicebridge/pkg/kv"
)

const (
	agentPrefix = "agent:"
	currentKey  = "config:current_agent"
)

// ErrNotFound is returned when the requested agent does not exist, or when
// no agent is currently active.
var ErrNotFound = errors.New("agentstore: agent not found")

// Agent is one provisioned agent record.
type Agent struct {
	ID           string    `json:"agent_id"`
	Model        string    `json:"model"`
	Name         string    `json:"name"`
	Instructions string    `json:"instructions"`
	CreatedAt    time.Time `json:"created_at"`
	LastUsed     time.Time `json:"last_used"`
}

// Store is the agent catalog. All methods are safe for concurrent use to
// the extent the underlying kv.Store is.
type Store struct {
	kv  kv.Store
	now func() time.Time
}

// New wraps a kv.Store as an agent catalog.
func New(s kv.Store) *Store {
	return &Store{kv: s, now: time.Now}
}

// Add registers a new agent record and marks it active.
func (s *Store) Add(ctx context.Context, agent Agent) error {
	if agent.ID == "" {
		return errors.New("agentstore: agent id is empty")
	}
	now := s.now().UTC()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}
	agent.LastUsed = now

	doc, err := json.Marshal(agent)
	if err != nil {
		return fmt.Errorf("agentstore: marshal agent: %w", err)
	}
	if err := s.kv.Set(ctx, agentPrefix+agent.ID, doc); err != nil {
		return err
	}
	return s.kv.Set(ctx, currentKey, []byte(agent.ID))
}

// Get returns one agent record by id.
func (s *Store) Get(ctx context.Context, id string) (Agent, error) {
	doc, err := s.kv.Get(ctx, agentPrefix+id)
	if errors.Is(err, kv.ErrNotFound) {
		return Agent{}, ErrNotFound
	}
	if err != nil {
		return Agent{}, err
	}
	var agent Agent
	if err := json.Unmarshal(doc, &agent); err != nil {
		return Agent{}, fmt.Errorf("agentstore: decode agent %s: %w", id, err)
	}
	return agent, nil
}

// List returns all agent records in key order.
func (s *Store) List(ctx context.Context) ([]Agent, error) {
	entries, err := s.kv.List(ctx, agentPrefix)
	if err != nil {
		return nil, err
	}
	agents := make([]Agent, 0, len(entries))
	for _, e := range entries {
		var agent Agent
		if err := json.Unmarshal(e.Value, &agent); err != nil {
			return nil, fmt.Errorf("agentstore: decode %s: %w", e.Key, err)
		}
		agents = append(agents, agent)
	}
	return agents, nil
}

// Find returns the agent matching a provisioning request exactly, so an
// identical request reuses the existing agent instead of creating another.
func (s *Store) Find(ctx context.Context, model, name, instructions string) (Agent, error) {
	agents, err := s.List(ctx)
	if err != nil {
		return Agent{}, err
	}
	for _, a := range agents {
		if a.Model == model && a.Name == name && a.Instructions == instructions {
			return a, nil
		}
	}
	return Agent{}, ErrNotFound
}

// Current returns the active agent record.
func (s *Store) Current(ctx context.Context) (Agent, error) {
	id, err := s.kv.Get(ctx, currentKey)
	if errors.Is(err, kv.ErrNotFound) {
		return Agent{}, ErrNotFound
	}
	if err != nil {
		return Agent{}, err
	}
	return s.Get(ctx, string(id))
}

// Activate marks an existing agent as active and bumps its last-used time.
func (s *Store) Activate(ctx context.Context, id string) (Agent, error) {
	agent, err := s.Get(ctx, id)
	if err != nil {
		return Agent{}, err
	}
	agent.LastUsed = s.now().UTC()
	doc, err := json.Marshal(agent)
	if err != nil {
		return Agent{}, fmt.Errorf("agentstore: marshal agent: %w", err)
	}
	if err := s.kv.Set(ctx, agentPrefix+id, doc); err != nil {
		return Agent{}, err
	}
	if err := s.kv.Set(ctx, currentKey, []byte(id)); err != nil {
		return Agent{}, err
	}
	return agent, nil
}

// Delete removes an agent record. If it was the active one, the active
// pointer is cleared as well.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, agentPrefix+id); err != nil {
		return err
	}
	current, err := s.kv.Get(ctx, currentKey)
	if err == nil && string(current) == id {
		return s.kv.Delete(ctx, currentKey)
	}
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	return err
}

// ClearCurrent drops the active-agent pointer without deleting any record.
func (s *Store) ClearCurrent(ctx context.Context) error {
	return s.kv.Delete(ctx, currentKey)
}
