// Package config manages the engine's runtime configuration: the owner
// account, per-chain collaborator endpoints, and the tracked asset list.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xchain-labs/orderbook-engine/internal/orderbook"
)

// EngineConfig is the top-level configuration for one running instance of
// the settlement engine.
type EngineConfig struct {
	Version       string               `json:"version"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
	Owner         string               `json:"owner"`
	Collaborators []CollaboratorConfig `json:"collaborators"`
	TrackedAssets []string             `json:"trackedAssets"`
	BatchSizeMax  int                  `json:"batchSizeMax"`
	SnapshotPath  string               `json:"snapshotPath"`
}

// CollaboratorConfig points at one chain's external services: an RPC
// endpoint, and a label for whichever MPC key path that chain's outbound
// transfers sign under. Validate requires RPCURL for enabled collaborators,
// but the sync-heights command does not read it: it reaches each chain
// through the Alchemy provider selected by ChainID.
type CollaboratorConfig struct {
	ChainType orderbook.ChainType `json:"chainType"`
	ChainID   string              `json:"chainId"`
	RPCURL    string              `json:"rpcUrl"`
	KeyPath   string              `json:"keyPath"`
	Enabled   bool                `json:"enabled"`
}

// defaultBatchSizeMax mirrors the 2-6 intents-per-batch window
// BatchMatchIntents enforces; it is not itself an enforced ceiling, just a
// hint for callers assembling batches.
const defaultBatchSizeMax = 6

// New creates an EngineConfig with default values for owner.
func New(owner string) *EngineConfig {
	now := time.Now()
	return &EngineConfig{
		Version:       "1.0.0",
		CreatedAt:     now,
		UpdatedAt:     now,
		Owner:         owner,
		Collaborators: []CollaboratorConfig{},
		TrackedAssets: []string{},
		BatchSizeMax:  defaultBatchSizeMax,
	}
}

// AddCollaborator adds or replaces the collaborator configuration for a
// chain type.
func (c *EngineConfig) AddCollaborator(collab CollaboratorConfig) {
	for i, existing := range c.Collaborators {
		if existing.ChainType == collab.ChainType {
			c.Collaborators[i] = collab
			c.UpdatedAt = time.Now()
			return
		}
	}
	c.Collaborators = append(c.Collaborators, collab)
	c.UpdatedAt = time.Now()
}

// RemoveCollaborator removes the configuration for a chain type, if present.
func (c *EngineConfig) RemoveCollaborator(chainType orderbook.ChainType) bool {
	for i, existing := range c.Collaborators {
		if existing.ChainType == chainType {
			c.Collaborators = append(c.Collaborators[:i], c.Collaborators[i+1:]...)
			c.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// Collaborator retrieves the configuration for a chain type.
func (c *EngineConfig) Collaborator(chainType orderbook.ChainType) (CollaboratorConfig, bool) {
	for _, existing := range c.Collaborators {
		if existing.ChainType == chainType {
			return existing, true
		}
	}
	return CollaboratorConfig{}, false
}

// AddTrackedAsset adds asset to the tracked list if not already present.
func (c *EngineConfig) AddTrackedAsset(asset string) {
	normalized := orderbook.Asset(asset).Normalize()
	for _, existing := range c.TrackedAssets {
		if orderbook.Asset(existing).Equal(orderbook.Asset(normalized)) {
			return
		}
	}
	c.TrackedAssets = append(c.TrackedAssets, string(normalized))
	c.UpdatedAt = time.Now()
}

// Validate checks the configuration is internally consistent enough to
// start the engine against.
func (c *EngineConfig) Validate() error {
	if c.Owner == "" {
		return fmt.Errorf("owner account is required")
	}
	if c.BatchSizeMax < 2 {
		return fmt.Errorf("batchSizeMax must be at least 2, got %d", c.BatchSizeMax)
	}
	for _, collab := range c.Collaborators {
		if collab.Enabled && collab.RPCURL == "" {
			return fmt.Errorf("collaborator %s is enabled but has no rpcUrl", collab.ChainType)
		}
	}
	return nil
}

// ToJSON serializes the configuration.
func (c *EngineConfig) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// FromJSON deserializes an EngineConfig.
func FromJSON(data []byte) (*EngineConfig, error) {
	var cfg EngineConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
