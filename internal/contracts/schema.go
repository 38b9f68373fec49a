package contracts

// Raw JSON Schema (draft-07, as consumed by gojsonschema) for each contract
// document. Kept as Go string constants rather than embedded files since they
// are small, static, and versioned with the Go types they describe.

const turnOutputSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["speaker_role", "turn_type", "content"],
  "properties": {
    "speaker_role": {"enum": ["ARCHITECT", "LOREKEEPER", "CONTRARIAN", "SYNTHESIZER"]},
    "turn_type": {"enum": ["PROPOSAL", "OBJECTION", "RESPONSE", "RESOLUTION", "VOTE"]},
    "content": {"type": "string"},
    "canon_patch": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["op", "path"],
        "properties": {
          "op": {"enum": ["add", "remove", "replace", "move", "copy", "test"]},
          "path": {"type": "string"},
          "from": {"type": "string"}
        }
      }
    },
    "references": {"type": "array", "items": {"type": "string"}},
    "vote": {
      "type": "object",
      "required": ["choice"],
      "properties": {
        "choice": {"enum": ["ACCEPT", "AMEND", "REJECT"]},
        "amendment_summary": {"type": "string"}
      }
    }
  }
}`

const landmarkSchema = `{
  "type": "object",
  "required": ["name", "description", "significance", "visual_key"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string", "minLength": 1},
    "significance": {"type": "string", "minLength": 1},
    "visual_key": {"type": "string", "minLength": 1}
  }
}`

const canonSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["world_name", "governing_logic", "aesthetic_mood", "landmarks", "inhabitants", "tension", "hero_image_description"],
  "properties": {
    "world_name": {"type": "string", "minLength": 1},
    "governing_logic": {"type": "string", "minLength": 1},
    "aesthetic_mood": {"type": "string", "minLength": 1},
    "landmarks": {
      "type": "array",
      "minItems": 3,
      "maxItems": 3,
      "items": ` + landmarkSchema + `
    },
    "inhabitants": {
      "type": "object",
      "required": ["appearance", "culture_snapshot", "relationship_to_place"],
      "properties": {
        "appearance": {"type": "string", "minLength": 1},
        "culture_snapshot": {"type": "string", "minLength": 1},
        "relationship_to_place": {"type": "string", "minLength": 1}
      }
    },
    "tension": {
      "type": "object",
      "required": ["conflict", "stakes", "visual_manifestation"],
      "properties": {
        "conflict": {"type": "string", "minLength": 1},
        "stakes": {"type": "string", "minLength": 1},
        "visual_manifestation": {"type": "string", "minLength": 1}
      }
    },
    "hero_image_description": {"type": "string", "minLength": 1}
  }
}`

const promptPackEntrySchema = `{
  "type": "object",
  "required": ["title", "prompt"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "prompt": {"type": "string", "minLength": 1},
    "negative_prompt": {"type": "string"},
    "aspect_ratio": {"type": "string"}
  }
}`

const promptPackSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["hero", "landmark_triptych", "inhabitant_portrait", "tension_snapshot"],
  "properties": {
    "hero": ` + promptPackEntrySchema + `,
    "landmark_triptych": {
      "type": "array",
      "minItems": 3,
      "maxItems": 3,
      "items": ` + promptPackEntrySchema + `
    },
    "inhabitant_portrait": ` + promptPackEntrySchema + `,
    "tension_snapshot": ` + promptPackEntrySchema + `
  }
}`

const patchSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["op", "path"],
    "properties": {
      "op": {"enum": ["add", "remove", "replace", "move", "copy", "test"]},
      "path": {"type": "string", "pattern": "^(/[^/]*)*$"},
      "from": {"type": "string"}
    }
  }
}`

// TurnOutputSchemaJSON returns the raw JSON Schema text for TurnOutput, for
// providers that must restate the schema in-band (system prompt or
// response-format instructions).
func TurnOutputSchemaJSON() string { return turnOutputSchema }

// PromptPackSchemaJSON returns the raw JSON Schema text for PromptPack.
func PromptPackSchemaJSON() string { return promptPackSchema }

// CanonSchemaJSON returns the raw JSON Schema text for the final Canon.
func CanonSchemaJSON() string { return canonSchema }
