package judging

import (
	"encoding/json"
	"fmt"

	"github.com/wbarena/arena/internal/canon"
	"github.com/wbarena/arena/internal/contracts"
)

// canonPatchEventData mirrors internal/deliberation's unexported
// canonPatchAppliedData payload shape, decoded here from the generic
// interface{} an eventlog read returns.
type canonPatchEventData struct {
	Phase int             `json:"phase"`
	Patch contracts.Patch `json:"patch"`
}

// promptPackEventData mirrors internal/deliberation's unexported
// promptPackGeneratedData payload shape.
type promptPackEventData struct {
	PromptPack contracts.PromptPack `json:"prompt_pack"`
}

// reconstructArtifact replays one team's canon_patch_applied events through
// a fresh canon.Store and pulls its prompt_pack_generated event, producing
// the WorldArtifact a completed match exposes for judging and for the
// artifacts endpoint. It returns ErrArtifactsNotReady if the team never
// reached phase 5.
func reconstructArtifact(events []contracts.MatchEvent, team contracts.TeamID) (contracts.WorldArtifact, error) {
	store := canon.New()
	if _, _, err := store.Init(); err != nil {
		return contracts.WorldArtifact{}, fmt.Errorf("judging: canon init: %w", err)
	}

	var pack contracts.PromptPack
	havePack := false

	for _, ev := range events {
		if ev.TeamID == nil || *ev.TeamID != team {
			continue
		}
		switch ev.Type {
		case contracts.EventCanonPatchApplied:
			var d canonPatchEventData
			if err := decodeEventData(ev.Data, &d); err != nil {
				return contracts.WorldArtifact{}, fmt.Errorf("judging: decode canon_patch_applied: %w", err)
			}
			if len(d.Patch) == 0 {
				continue
			}
			if _, _, _, perr := store.Apply(d.Patch, d.Phase); perr != nil {
				return contracts.WorldArtifact{}, fmt.Errorf("judging: replay canon patch: %w", perr)
			}
		case contracts.EventPromptPackGenerated:
			var d promptPackEventData
			if err := decodeEventData(ev.Data, &d); err != nil {
				return contracts.WorldArtifact{}, fmt.Errorf("judging: decode prompt_pack_generated: %w", err)
			}
			pack = d.PromptPack
			havePack = true
		}
	}

	if !havePack {
		return contracts.WorldArtifact{}, ErrArtifactsNotReady
	}

	snapshot, err := store.Snapshot()
	if err != nil {
		return contracts.WorldArtifact{}, fmt.Errorf("judging: canon snapshot: %w", err)
	}
	return contracts.WorldArtifact{Canon: snapshot, PromptPack: pack}, nil
}

// decodeEventData round-trips a generic interface{} (the shape
// eventlog.Repository.ListEventsSince returns after JSON-unmarshaling a
// stored event) into a concrete typed struct.
func decodeEventData(data interface{}, out interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
