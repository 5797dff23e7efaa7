package story

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
)

// Provider replies must decode into this shape. Anything else is
// model.ErrUnparsableResponse; callers never assume shape.
const resultSchemaJSON = `{
    "type": "object",
    "required": ["story", "plainText"],
    "properties": {
        "story": {"type": "string", "minLength": 1},
        "plainText": {"type": "string", "minLength": 1},
        "emoji": {"type": "string"}
    }
}`

var resultSchema = mustCompileResultSchema()

func mustCompileResultSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(resultSchemaJSON))
	if err != nil {
		panic(err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("storyline-result.json", doc); err != nil {
		panic(err)
	}
	sch, err := c.Compile("storyline-result.json")
	if err != nil {
		panic(err)
	}
	return sch
}

// ParseResult decodes a provider's raw text output into a Result. The
// text may be wrapped in markdown fences or prose; only the first JSON
// object is considered.
func ParseResult(raw string) (*Result, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, model.ErrUnparsableResponse
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw[start : end+1]))
	if err != nil {
		return nil, model.ErrUnparsableResponse
	}
	if err := resultSchema.Validate(doc); err != nil {
		return nil, model.ErrUnparsableResponse
	}

	obj := doc.(map[string]any)
	out := &Result{
		StoryText: obj["story"].(string),
		PlainText: obj["plainText"].(string),
	}
	if e, ok := obj["emoji"].(string); ok {
		out.Emoji = e
	}
	return out, nil
}
