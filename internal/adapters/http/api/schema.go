package api

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// postRankingSchema accepts {"data": [ {...}, ... ]}. Row fields are coerced later,
// so only the envelope shape is enforced.
const postRankingSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["data"],
  "properties": {
    "data": {
      "type": "array",
      "items": {"type": "object"}
    }
  }
}`

// postContestTimeSchema accepts a start time plus a duration in minutes or an end time.
const postContestTimeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["startTime"],
  "properties": {
    "startTime": {"type": "string", "minLength": 1},
    "endTime": {"type": ["string", "null"]},
    "duration": {"type": ["integer", "string", "null"]}
  },
  "anyOf": [
    {"required": ["duration"]},
    {"required": ["endTime"]}
  ]
}`

var (
	rankingSchema = jsonschema.MustCompileString("post_ranking.schema.json", postRankingSchema)
	contestSchema = jsonschema.MustCompileString("post_contest_time.schema.json", postContestTimeSchema)
)

// validate checks raw JSON against schema.
func validate(schema *jsonschema.Schema, raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}
