package queue

import (
	"strings"

	"github.com/xeipuuv/gojsonschema"

	xerrors "github.com/vmatresu/vclip/errors"
)

// jobPayloadSchema guards the wire format before we ever hand the payload
// to the JSON decoder. Structural garbage is rejected as input validation
// and dead-lettered instead of bouncing between consumers.
const jobPayloadSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["kind", "job_id", "user_id", "video_id", "targets"],
  "properties": {
    "kind": {
      "type": "string",
      "enum": ["process_video", "reprocess_scenes", "render_scene_style"]
    },
    "job_id": {"type": "string", "minLength": 1},
    "user_id": {"type": "string", "minLength": 1},
    "video_id": {"type": "string", "minLength": 1},
    "created_at": {"type": "string"},
    "targets": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["scene_id", "style"],
        "properties": {
          "scene_id": {"type": "integer", "minimum": 1},
          "style": {"type": "string", "minLength": 1}
        }
      }
    },
    "target_aspect": {"type": "string"},
    "crop_mode": {"type": "string"},
    "detection_tier": {"type": "string"},
    "analysis_ref": {"type": "string"},
    "silent_removal": {"type": "boolean"},
    "object_detection": {"type": "boolean"}
  }
}`

var payloadSchema = gojsonschema.NewStringLoader(jobPayloadSchema)

// ValidatePayload checks a raw queue payload against the job schema.
func ValidatePayload(payload []byte) error {
	result, err := gojsonschema.Validate(payloadSchema, gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return xerrors.InputValidation("job payload is not valid JSON", err)
	}
	if result.Valid() {
		return nil
	}
	sb := strings.Builder{}
	for i, resErr := range result.Errors() {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(resErr.String())
	}
	return xerrors.InputValidation("job payload failed schema validation: "+sb.String(), nil)
}
