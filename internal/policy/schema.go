package policy

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// scheduleFileSchema describes the file accepted by `schedules set --file`.
// Unknown fields are rejected rather than ignored.
const scheduleFileSchema = `{
  "type": "object",
  "required": ["schedules"],
  "additionalProperties": false,
  "properties": {
    "schedules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "start_hour", "start_minute", "end_hour", "end_minute", "enabled"],
        "additionalProperties": false,
        "properties": {
          "name":         {"type": "string", "minLength": 1},
          "start_hour":   {"type": "integer", "minimum": 0, "maximum": 23},
          "start_minute": {"type": "integer", "minimum": 0, "maximum": 59},
          "end_hour":     {"type": "integer", "minimum": 0, "maximum": 23},
          "end_minute":   {"type": "integer", "minimum": 0, "maximum": 59},
          "enabled":      {"type": "boolean"},
          "repeats":      {"type": "boolean"}
        }
      }
    }
  }
}`

type scheduleFile struct {
	Schedules []scheduleEntry `json:"schedules"`
}

type scheduleEntry struct {
	Name        string `json:"name"`
	StartHour   int    `json:"start_hour"`
	StartMinute int    `json:"start_minute"`
	EndHour     int    `json:"end_hour"`
	EndMinute   int    `json:"end_minute"`
	Enabled     bool   `json:"enabled"`
	Repeats     *bool  `json:"repeats"`
}

var (
	scheduleSchemaOnce sync.Once
	scheduleSchemaVal  *jsonschema.Schema
	scheduleSchemaErr  error
)

// scheduleSchema compiles the schedule file schema once per process.
func scheduleSchema() (*jsonschema.Schema, error) {
	scheduleSchemaOnce.Do(func() {
		scheduleSchemaVal, scheduleSchemaErr = compileScheduleSchema()
	})
	return scheduleSchemaVal, scheduleSchemaErr
}

func compileScheduleSchema() (*jsonschema.Schema, error) {
	var schemaObj any
	if err := json.Unmarshal([]byte(scheduleFileSchema), &schemaObj); err != nil {
		return nil, fmt.Errorf("schema unmarshal error: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schedules.json", schemaObj); err != nil {
		return nil, fmt.Errorf("schema compile error: %w", err)
	}
	sch, err := c.Compile("schedules.json")
	if err != nil {
		return nil, fmt.Errorf("schema compile error: %w", err)
	}
	return sch, nil
}

// ParseScheduleFile validates raw against the schedule file schema and
// converts it to schedules. Entries without "repeats" repeat daily.
// Range checks beyond the schema are left to ValidateBatch.
func ParseScheduleFile(raw []byte) ([]domain.Schedule, error) {
	sch, err := scheduleSchema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("schedule file is not valid JSON: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("schedule file validation failed: %w", err)
	}

	var f scheduleFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to decode schedule file: %w", err)
	}

	out := make([]domain.Schedule, 0, len(f.Schedules))
	for _, e := range f.Schedules {
		repeats := true
		if e.Repeats != nil {
			repeats = *e.Repeats
		}
		out = append(out, domain.Schedule{
			Name:        e.Name,
			StartMinute: e.StartHour*60 + e.StartMinute,
			EndMinute:   e.EndHour*60 + e.EndMinute,
			Enabled:     e.Enabled,
			Repeats:     repeats,
		})
	}
	return out, nil
}
