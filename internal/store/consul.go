//go:build consul

package store

import (
	"encoding/json"
	"fmt"

	consulapi "github.com/hashicorp/consul/api"

	"github.com/rangeops/missiond/pkg/types"
)

const missionPrefix = "missiond/missions/"

func openConsul(addr string) (MissionStore, error) {
	return NewConsulStore(addr)
}

// ConsulStore is a Consul KV-backed MissionStore (requires build tag consul).
type ConsulStore struct {
	cli *consulapi.Client
}

// NewConsulStore connects to the Consul agent at addr ("" for the default).
func NewConsulStore(addr string) (*ConsulStore, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	cli, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	return &ConsulStore{cli: cli}, nil
}

func (s *ConsulStore) Load(id types.MissionID) (*types.MissionState, error) {
	pair, _, err := s.cli.KV().Get(missionPrefix+string(id), nil)
	if err != nil {
		return nil, fmt.Errorf("consul get: %w", err)
	}
	if pair == nil {
		return nil, ErrMissionNotFound
	}
	var state types.MissionState
	if err := json.Unmarshal(pair.Value, &state); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorruptedRecord, id)
	}
	return &state, nil
}

func (s *ConsulStore) Save(state *types.MissionState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal mission record: %w", err)
	}
	_, err = s.cli.KV().Put(&consulapi.KVPair{
		Key:   missionPrefix + string(state.ID),
		Value: b,
	}, nil)
	if err != nil {
		return fmt.Errorf("consul put: %w", err)
	}
	return nil
}

func (s *ConsulStore) List() ([]types.MissionID, error) {
	pairs, _, err := s.cli.KV().List(missionPrefix, nil)
	if err != nil {
		return nil, fmt.Errorf("consul list: %w", err)
	}
	ids := make([]types.MissionID, 0, len(pairs))
	for _, p := range pairs {
		ids = append(ids, types.MissionID(p.Key[len(missionPrefix):]))
	}
	return ids, nil
}

func (s *ConsulStore) Close() error { return nil }
