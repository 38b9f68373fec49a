// Package canon implements the per-team canon document: patch application
// with phase-scoped write restrictions, copy-on-write atomicity, and
// canonical content hashing.
package canon

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/wbarena/arena/internal/contracts"
)

// Error kinds surfaced by Apply/DryRun
const (
	ErrPatchRejectedPhase     = "patch_rejected_phase"
	ErrPatchRejectedSemantics = "patch_rejected_semantics"
	ErrCanonSchemaInvalid     = "canon_schema_invalid"
)

// PatchError is a structured rejection of a patch application attempt.
type PatchError struct {
	Kind    string
	Message string
}

func (e *PatchError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

// Store holds one team's live canon document and applies patches to it.
// A Store is owned exclusively by a single team's deliberation engine;
// it is not safe to share across teams, though its own operations are
// internally synchronized for the engine's own concurrent callers
// (e.g. an HTTP snapshot read racing a turn's patch application).
type Store struct {
	mu  sync.RWMutex
	doc interface{} // generic JSON tree: map[string]interface{} at the root
}

// New creates a Store whose canon is not yet initialized; call Init before
// any patch application.
func New() *Store {
	return &Store{}
}

// Init sets the canon to its Phase-1 placeholder structure and returns its
// hash.
func (s *Store) Init() (contracts.Canon, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	placeholder := contracts.PlaceholderCanon()
	doc, err := toGeneric(placeholder)
	if err != nil {
		return contracts.Canon{}, "", err
	}
	s.doc = doc

	hash, err := Hash(s.doc)
	if err != nil {
		return contracts.Canon{}, "", err
	}
	return placeholder, hash, nil
}

// Snapshot returns the current canon as a typed value.
func (s *Store) Snapshot() (contracts.Canon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fromGeneric(s.doc)
}

// Hash returns the current canonical content hash.
func (s *Store) Hash() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Hash(s.doc)
}

// writeRestrictions returns a predicate on JSON-Pointer paths describing
// which subtrees may be written in the given phase
func writeRestrictions(phase int) func(path string) bool {
	allowedRoots := func(roots ...string) func(string) bool {
		return func(path string) bool {
			for _, root := range roots {
				if path == root || strings.HasPrefix(path, root+"/") {
					return true
				}
			}
			return false
		}
	}
	switch phase {
	case 1:
		return allowedRoots("/world_name", "/governing_logic", "/aesthetic_mood")
	case 2:
		return allowedRoots("/landmarks")
	case 3:
		return allowedRoots("/tension")
	case 4:
		return func(string) bool { return true }
	default: // Phase 5 and beyond: read-only
		return func(string) bool { return false }
	}
}

// AllowedPatchRoots returns the root-level JSON-Pointer prefixes a patch may
// target in phase, for advertising to the provider adapter's TurnSpec. Phase
// 4 allows any path and phase 5+ allows none; both are reported as a nil
// slice (the absence of a restriction, respectively a closed one) since
// there is no fixed prefix list to advertise for either.
func AllowedPatchRoots(phase int) []string {
	switch phase {
	case 1:
		return []string{"/world_name", "/governing_logic", "/aesthetic_mood"}
	case 2:
		return []string{"/landmarks"}
	case 3:
		return []string{"/tension"}
	default:
		return nil
	}
}

// pathsTouched returns the set of root-level paths a patch op addresses,
// including both `path` and, for move/copy, `from`.
func pathsTouched(op contracts.PatchOp) []string {
	paths := []string{op.Path}
	if op.From != "" {
		paths = append(paths, op.From)
	}
	return paths
}

// DryRun validates that patch would be accepted in phase without mutating
// the store. The Validator (C5) delegates phase-write-restriction checks to
// this method.
func (s *Store) DryRun(patch contracts.Patch, phase int) *PatchError {
	s.mu.RLock()
	doc := cloneDeep(s.doc)
	s.mu.RUnlock()
	_, _, perr := applyPatch(doc, patch, phase)
	return perr
}

// Apply applies patch atomically against the current phase's write
// restrictions. On success the store's canon is updated and the
// before/after hashes are returned. On any op failure the document is left
// entirely unchanged (copy-on-write) and a structured PatchError is
// returned instead.
func (s *Store) Apply(patch contracts.Patch, phase int) (beforeHash, afterHash string, snapshot contracts.Canon, perr *PatchError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, err := Hash(s.doc)
	if err != nil {
		return "", "", contracts.Canon{}, &PatchError{Kind: ErrPatchRejectedSemantics, Message: err.Error()}
	}

	newDoc, _, perr := applyPatch(s.doc, patch, phase)
	if perr != nil {
		return before, before, contracts.Canon{}, perr
	}

	if phase == 4 {
		typed, err := fromGeneric(newDoc)
		if err != nil {
			return before, before, contracts.Canon{}, &PatchError{Kind: ErrCanonSchemaInvalid, Message: err.Error()}
		}
		result, err := contracts.ValidateCanon(typed)
		if err != nil {
			return before, before, contracts.Canon{}, &PatchError{Kind: ErrCanonSchemaInvalid, Message: err.Error()}
		}
		if !result.Valid {
			msgs := make([]string, len(result.Errors))
			for i, e := range result.Errors {
				msgs[i] = e.Error()
			}
			return before, before, contracts.Canon{}, &PatchError{
				Kind:    ErrCanonSchemaInvalid,
				Message: strings.Join(msgs, "; "),
			}
		}
	}

	s.doc = newDoc
	after, err := Hash(s.doc)
	if err != nil {
		return before, before, contracts.Canon{}, &PatchError{Kind: ErrPatchRejectedSemantics, Message: err.Error()}
	}
	typed, err := fromGeneric(s.doc)
	if err != nil {
		return before, after, contracts.Canon{}, &PatchError{Kind: ErrPatchRejectedSemantics, Message: err.Error()}
	}
	return before, after, typed, nil
}

// applyPatch applies every op in patch in order against a private copy of
// doc, returning the new root on success. It never mutates doc itself.
func applyPatch(doc interface{}, patch contracts.Patch, phase int) (interface{}, interface{}, *PatchError) {
	allowed := writeRestrictions(phase)
	working := doc
	var lastRemoved interface{}

	for _, op := range patch {
		for _, p := range pathsTouched(op) {
			if !allowed(p) {
				return nil, nil, &PatchError{
					Kind:    ErrPatchRejectedPhase,
					Message: fmt.Sprintf("path %q is not writable in phase %d", p, phase),
				}
			}
		}

		var err error
		working, lastRemoved, err = applyOp(working, op)
		if err != nil {
			return nil, nil, &PatchError{Kind: ErrPatchRejectedSemantics, Message: err.Error()}
		}
	}
	return working, lastRemoved, nil
}

func applyOp(doc interface{}, op contracts.PatchOp) (interface{}, interface{}, error) {
	pathTokens, err := splitPointer(op.Path)
	if err != nil {
		return nil, nil, err
	}

	switch op.Op {
	case contracts.OpAdd:
		newDoc, err := setAt(doc, pathTokens, op.Value, true)
		return newDoc, nil, err
	case contracts.OpReplace:
		newDoc, err := setAt(doc, pathTokens, op.Value, false)
		return newDoc, nil, err
	case contracts.OpRemove:
		newDoc, removed, err := removeAt(doc, pathTokens)
		return newDoc, removed, err
	case contracts.OpMove:
		fromTokens, err := splitPointer(op.From)
		if err != nil {
			return nil, nil, err
		}
		val, err := getAt(doc, fromTokens)
		if err != nil {
			return nil, nil, err
		}
		doc, _, err = removeAt(doc, fromTokens)
		if err != nil {
			return nil, nil, err
		}
		doc, err = setAt(doc, pathTokens, val, true)
		return doc, nil, err
	case contracts.OpCopy:
		fromTokens, err := splitPointer(op.From)
		if err != nil {
			return nil, nil, err
		}
		val, err := getAt(doc, fromTokens)
		if err != nil {
			return nil, nil, err
		}
		doc, err = setAt(doc, pathTokens, cloneDeep(val), true)
		return doc, nil, err
	case contracts.OpTest:
		val, err := getAt(doc, pathTokens)
		if err != nil {
			return nil, nil, err
		}
		if !deepEqual(val, op.Value) {
			return nil, nil, fmt.Errorf("canon: test failed at %q", op.Path)
		}
		return doc, nil, nil
	default:
		return nil, nil, fmt.Errorf("canon: unsupported op %q", op.Op)
	}
}

// toGeneric round-trips a typed value through JSON into the generic tree
// representation patches operate on.
func toGeneric(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return generic, nil
}

func fromGeneric(doc interface{}) (contracts.Canon, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return contracts.Canon{}, err
	}
	var c contracts.Canon
	if err := json.Unmarshal(data, &c); err != nil {
		return contracts.Canon{}, err
	}
	return c, nil
}

// cloneDeep deep-copies a generic JSON tree via round-trip, used where a
// caller needs an isolated working copy (DryRun) distinct from the
// incremental copy-on-write done by setAt/removeAt during Apply.
func cloneDeep(doc interface{}) interface{} {
	data, err := json.Marshal(doc)
	if err != nil {
		return doc
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return doc
	}
	return out
}
