// File: oracle/mock_oracle.go
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"dao-governance/models"
)

// MockBalanceOracle implements BalanceOracle from a JSON file of balances
// keyed by base58 public key. It stands in for the real token ledger in
// development and tests.
type MockBalanceOracle struct {
	balances map[string]uint64
	mu       sync.RWMutex
	config   OracleConfig
}

type OracleConfig struct {
	BalancesFilePath string `json:"balances_file_path"`
	AutoSave         bool   `json:"auto_save"`
}

type balancesFile struct {
	Balances map[string]uint64 `json:"balances"`
}

func NewMockBalanceOracle(config OracleConfig) (*MockBalanceOracle, error) {
	o := &MockBalanceOracle{
		balances: make(map[string]uint64),
		config:   config,
	}

	dir := filepath.Dir(config.BalancesFilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %v", err)
	}

	return o, nil
}

// LoadTestData loads balances from the configured file, creating a default
// file if none exists.
func (o *MockBalanceOracle) LoadTestData() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	data, err := os.ReadFile(o.config.BalancesFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return o.createDefaultBalancesFile()
		}
		return fmt.Errorf("failed to read balances file: %v", err)
	}

	var parsed balancesFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to unmarshal balances: %v", err)
	}

	o.balances = make(map[string]uint64)
	for key, balance := range parsed.Balances {
		o.balances[key] = balance
	}

	return nil
}

func (o *MockBalanceOracle) createDefaultBalancesFile() error {
	defaults := balancesFile{Balances: map[string]uint64{}}

	data, err := json.MarshalIndent(defaults, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal default balances: %v", err)
	}

	// Write via a temp file so a crash never leaves a half-written file.
	tempPath := o.config.BalancesFilePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write balances file: %v", err)
	}
	if err := os.Rename(tempPath, o.config.BalancesFilePath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save balances file: %v", err)
	}

	return nil
}

func (o *MockBalanceOracle) TokenBalance(_ context.Context, key models.PublicKey) (uint64, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.balances[key.String()], nil
}

// SetBalance sets a balance in memory and, with AutoSave, persists the
// whole table.
func (o *MockBalanceOracle) SetBalance(key models.PublicKey, balance uint64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.balances[key.String()] = balance

	if !o.config.AutoSave {
		return nil
	}
	return o.saveLocked()
}

func (o *MockBalanceOracle) saveLocked() error {
	data, err := json.MarshalIndent(balancesFile{Balances: o.balances}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal balances: %v", err)
	}

	tempPath := o.config.BalancesFilePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write balances file: %v", err)
	}
	if err := os.Rename(tempPath, o.config.BalancesFilePath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save balances file: %v", err)
	}

	return nil
}
